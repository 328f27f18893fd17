package app

import (
	"fmt"
	"time"

	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"

	"prdeck/internal/auth"
	"prdeck/internal/config"
	"prdeck/internal/git"
	"prdeck/internal/logging"
	"prdeck/internal/types"
	"prdeck/internal/update"
)

type fetchKey string

const (
	fetchPullRequests fetchKey = "pulls"
	fetchBranches     fetchKey = "branches"
	fetchChangedFiles fetchKey = "files"
	fetchTags         fetchKey = "tags"
	fetchWorkflowRuns fetchKey = "runs"
)

func detailFetchKey(number uint64) fetchKey {
	return fetchKey(fmt.Sprintf("detail:%d", number))
}

const statusTTL = 6 * time.Second

type statusLevel uint8

const (
	statusInfo statusLevel = iota
	statusWarning
	statusError
)

type statusLine struct {
	text  string
	level statusLevel
	at    time.Time
}

type popup struct {
	title    string
	message  string
	critical bool
}

type updateState struct {
	checking    bool
	available   string
	candidate   *update.CheckResult
	downloading bool
	done        int64
	total       int64
	ready       string
	applying    bool
	applied     string
}

type prListState struct {
	items  []types.PullRequest
	cursor int
	err    error
}

type prDetailState struct {
	number       uint64
	pr           *types.PullRequest
	comments     []types.Comment
	reactions    []types.Reaction
	err          error
	viewport     viewport.Model
	composing    bool
	input        textinput.Model
	confirmMerge bool
	reacting     bool
	merging      bool
}

type createField int

const (
	fieldBase createField = iota
	fieldHead
	fieldTitle
	fieldBody
	fieldDraft
	createFieldCount
)

type prCreateState struct {
	branches   []string
	base       string
	head       string
	title      textinput.Model
	body       textarea.Model
	draft      bool
	focus      createField
	generating bool
	submitting bool
	err        error
}

type commitState struct {
	files      []types.FileStatus
	cursor     int
	message    textarea.Model
	editing    bool
	generating bool
	committing bool
	pushing    bool
	err        error
}

type tagsState struct {
	items         []types.Tag
	cursor        int
	creating      bool
	name          textinput.Model
	message       textinput.Model
	focusMessage  bool
	confirmDelete bool
	busy          bool
	err           error
}

type runsState struct {
	items      []types.WorkflowRun
	cursor     int
	selectedID uint64
	fetchedAt  time.Time
	err        error
}

type settingsItem int

const (
	settingsAIModel settingsItem = iota
	settingsAPIKey
	settingsLogout
	settingsItemCount
)

type settingsState struct {
	cursor        settingsItem
	editingKey    bool
	keyInput      textinput.Model
	confirmLogout bool
	savingModel   bool
}

// Model is the scheduler. It owns every piece of UI state; background
// operations report back only through the bus.
type Model struct {
	cfg        config.CoreConfig
	services   Services
	bus        *Bus
	dispatcher *Dispatcher
	keys       KeyMap
	logger     logging.Logger
	now        func() time.Time
	version    string

	width      int
	height     int
	screen     Screen
	history    *navigationStack
	menuCursor int

	repo       types.Repository
	viewer     string
	branch     string
	authStatus auth.Status
	authLoaded bool
	needsLogin bool
	update     updateState
	status     statusLine
	popup      *popup

	inflight map[fetchKey]string
	loaded   map[fetchKey]bool
	ticks    int

	prList   prListState
	prDetail prDetailState
	prCreate prCreateState
	commit   commitState
	tags     tagsState
	runs     runsState
	settings settingsState
}

type ModelOption func(*Model)

func WithLogger(logger logging.Logger) ModelOption {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithClock(now func() time.Time) ModelOption {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

func WithVersion(version string) ModelOption {
	return func(m *Model) {
		m.version = version
	}
}

func WithKeyMap(keys KeyMap) ModelOption {
	return func(m *Model) {
		m.keys = keys
	}
}

func NewModel(cfg config.CoreConfig, services Services, opts ...ModelOption) *Model {
	m := &Model{
		cfg:      cfg,
		services: services,
		bus:      NewBus(defaultBusCapacity),
		keys:     DefaultKeyMap(),
		logger:   logging.Nop(),
		now:      time.Now,
		version:  "dev",
		width:    100,
		height:   30,
		screen:   DashboardScreen(),
		history:  newNavigationStack(defaultNavigationLimit),
		inflight: map[fetchKey]string{},
		loaded:   map[fetchKey]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.dispatcher = NewDispatcher(m.bus, defaultBlockingLane, m.logger)
	if services.Forge != nil {
		m.repo = services.Forge.Repository()
	}
	m.initInputs()
	return m
}

func (m *Model) initInputs() {
	m.prDetail.viewport = viewport.New(viewport.WithWidth(m.width), viewport.WithHeight(m.bodyHeight()))

	m.prDetail.input = textinput.New()
	m.prDetail.input.Prompt = "comment> "
	m.prDetail.input.Placeholder = "write a comment"

	m.prCreate.title = textinput.New()
	m.prCreate.title.Prompt = ""
	m.prCreate.title.Placeholder = "Title"
	m.prCreate.title.CharLimit = 256

	m.prCreate.body = textarea.New()
	m.prCreate.body.Placeholder = "Description (markdown)"
	m.prCreate.body.ShowLineNumbers = false

	m.commit.message = textarea.New()
	m.commit.message.Placeholder = "Commit message"
	m.commit.message.ShowLineNumbers = false

	m.tags.name = textinput.New()
	m.tags.name.Prompt = "name> "
	m.tags.name.Placeholder = "v1.2.3"
	m.tags.message = textinput.New()
	m.tags.message.Prompt = "message> "
	m.tags.message.Placeholder = "optional; makes an annotated tag"

	m.settings.keyInput = textinput.New()
	m.settings.keyInput.Prompt = "key> "
	m.settings.keyInput.EchoMode = textinput.EchoPassword

	m.layout()
}

// Run starts the terminal UI and blocks until the user quits.
func Run(cfg config.CoreConfig, services Services, opts ...ModelOption) error {
	model := NewModel(cfg, services, opts...)
	if services.GitDir != "" && cfg.WatchRepository() {
		watcher, err := git.NewWatcher(services.GitDir, func() {
			model.bus.TrySend(repoChangedMsg{})
		}, model.logger)
		if err != nil {
			model.logger.Warn("repository watcher unavailable", logging.Err(err))
		} else {
			defer watcher.Close()
		}
	}
	p := tea.NewProgram(model)
	_, err := p.Run()
	return err
}

type tickMsg struct {
	at time.Time
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg{at: t}
	})
}

func (m *Model) Init() tea.Cmd {
	m.dispatcher.Dispatch("auth-status", loadAuthStatusOp(m.services.Auth))
	if m.services.Forge != nil {
		m.dispatcher.Dispatch("repo-info", loadRepoInfoOp(m.services.Forge))
	}
	if m.services.Git != nil {
		m.dispatcher.DispatchBlocking("current-branch", loadBranchOp(m.services.Git))
	}
	return tea.Batch(waitForBusCmd(m.bus), tickCmd(m.cfg.TickInterval()), tea.RequestBackgroundColor)
}

// Update drains every queued outcome before it handles msg, so the frame
// rendered afterwards reflects all results received so far.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.drainOutcomes()
	switch msg := msg.(type) {
	case busReadyMsg:
		return m, waitForBusCmd(m.bus)
	case tickMsg:
		m.onTick(msg.at)
		return m, tickCmd(m.cfg.TickInterval())
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil
	case tea.BackgroundColorMsg:
		if setMarkdownBackgroundDark(msg.IsDark()) && m.prDetail.pr != nil {
			m.refreshDetailViewport()
		}
		return m, nil
	case tea.KeyPressMsg:
		return m, m.handleKey(msg)
	}
	return m, m.updateFocusedInput(msg)
}

func (m *Model) drainOutcomes() int {
	outcomes := m.bus.Drain()
	for _, outcome := range outcomes {
		m.applyOutcome(outcome)
	}
	return len(outcomes)
}

func (m *Model) onTick(at time.Time) {
	m.ticks++
	if m.ticks == 1 {
		m.startUpdateCheck()
	}
	if m.screen.Kind == ScreenWorkflowRuns && !m.isInflight(fetchWorkflowRuns) {
		if m.runs.fetchedAt.IsZero() || at.Sub(m.runs.fetchedAt) >= m.cfg.PollInterval() {
			m.fetch(fetchWorkflowRuns, true, "workflow-runs", loadWorkflowRunsOp(m.services.Forge, m.now), false)
		}
	}
	if m.status.text != "" && m.status.level == statusInfo && at.Sub(m.status.at) > statusTTL {
		m.status = statusLine{}
	}
}

func (m *Model) layout() {
	bodyHeight := m.bodyHeight()
	m.prDetail.viewport.SetWidth(m.width)
	m.prDetail.viewport.SetHeight(bodyHeight - 2)
	inputWidth := max(20, m.width-4)
	m.prDetail.input.SetWidth(inputWidth)
	m.prCreate.title.SetWidth(inputWidth)
	m.prCreate.body.SetWidth(inputWidth)
	m.prCreate.body.SetHeight(max(3, bodyHeight-10))
	m.commit.message.SetWidth(inputWidth)
	m.commit.message.SetHeight(6)
	m.tags.name.SetWidth(inputWidth)
	m.tags.message.SetWidth(inputWidth)
	m.settings.keyInput.SetWidth(inputWidth)
	if m.prDetail.pr != nil {
		m.refreshDetailViewport()
	}
}

func (m *Model) bodyHeight() int {
	return max(5, m.height-4)
}

func (m *Model) setStatus(level statusLevel, format string, args ...any) {
	m.status = statusLine{text: fmt.Sprintf(format, args...), level: level, at: m.now()}
}

func (m *Model) showPopup(title, message string, critical bool) {
	m.popup = &popup{title: title, message: message, critical: critical}
}
