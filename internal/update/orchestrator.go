package update

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"prdeck/internal/logging"
	"prdeck/internal/store"
	"prdeck/internal/types"
)

const defaultCheckInterval = time.Hour

type State string

const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateUpToDate    State = "up_to_date"
	StateAvailable   State = "available"
	StateDownloading State = "downloading"
	StateVerifying   State = "verifying"
	StateReady       State = "ready"
	StateApplying    State = "applying"
	StateApplied     State = "applied"
	StateRolledBack  State = "rolled_back"
	StateFailed      State = "failed"
)

type ApplyResult string

const (
	ApplyNothingPending ApplyResult = "nothing_pending"
	ApplyApplied        ApplyResult = "applied"
	ApplyRolledBack     ApplyResult = "rolled_back"
	ApplyFailed         ApplyResult = "failed"
)

type CheckResult struct {
	Available bool
	Current   string
	Version   string
	Asset     types.ReleaseAsset
	Notes     string
}

// ProgressFunc receives bytes written so far and the expected total, which
// is -1 when the server does not send a length.
type ProgressFunc func(done, total int64)

type Options struct {
	CurrentVersion string
	Feed           ReleaseFeed
	Checkpoints    store.UpdateCheckpointStore
	StagingDir     string
	CheckInterval  time.Duration
	Logger         logging.Logger
}

// Orchestrator drives check, download, verify and apply. It is the only
// writer of the update checkpoint; operations are serialized.
type Orchestrator struct {
	current     string
	feed        ReleaseFeed
	checkpoints store.UpdateCheckpointStore
	stagingDir  string
	interval    time.Duration
	assetName   string
	http        *http.Client
	executable  func() (string, error)
	selfTest    SelfTester
	rename      func(oldpath, newpath string) error
	now         func() time.Time
	logger      logging.Logger

	mu      sync.Mutex
	stateMu sync.RWMutex
	state   State
}

type Option func(*Orchestrator)

func WithExecutable(fn func() (string, error)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.executable = fn
		}
	}
}

func WithSelfTester(fn SelfTester) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.selfTest = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *Orchestrator) {
		if client != nil {
			o.http = client
		}
	}
}

func WithAssetName(name string) Option {
	return func(o *Orchestrator) {
		o.assetName = strings.TrimSpace(name)
	}
}

func New(opts Options, extra ...Option) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	interval := opts.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	o := &Orchestrator{
		current:     opts.CurrentVersion,
		feed:        opts.Feed,
		checkpoints: opts.Checkpoints,
		stagingDir:  opts.StagingDir,
		interval:    interval,
		assetName:   PlatformAssetName(),
		http:        &http.Client{Timeout: 10 * time.Minute},
		executable:  currentExecutable,
		selfTest:    ExecSelfTest,
		rename:      os.Rename,
		now:         time.Now,
		logger:      logger,
		state:       StateIdle,
	}
	for _, opt := range extra {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func currentExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(exe)
}

func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(state State) {
	o.stateMu.Lock()
	previous := o.state
	o.state = state
	o.stateMu.Unlock()
	if previous != state {
		o.logger.Debug("update state", logging.F("from", previous), logging.F("to", state))
	}
}

// Startup finishes an interrupted apply, discards an abandoned checkpoint
// and removes leftover staging files. Call it once before any other
// operation. Only a failed rollback is returned as an error.
func (o *Orchestrator) Startup(ctx context.Context) error {
	if result, err := o.ResumeInterrupted(ctx); err != nil {
		if IsCritical(err) {
			return err
		}
		o.logger.Warn("interrupted update did not complete", logging.F("result", result), logging.Err(err))
	}
	if _, err := o.DiscardStale(ctx); err != nil {
		return err
	}
	return o.CleanupStaging(ctx)
}

// ShouldCheck reports whether the last successful check is older than the
// configured interval.
func (o *Orchestrator) ShouldCheck(ctx context.Context) bool {
	cp, err := o.checkpoints.Load(ctx)
	if err != nil || cp.LastCheck == nil {
		return true
	}
	return o.now().Sub(*cp.LastCheck) >= o.interval
}

// Pending returns the version of a verified, staged update.
func (o *Orchestrator) Pending(ctx context.Context) (string, bool) {
	cp, err := o.checkpoints.Load(ctx)
	if err != nil || !cp.HasPending() {
		return "", false
	}
	if _, err := os.Stat(cp.PendingPath); err != nil {
		return "", false
	}
	return cp.PendingVersion, true
}

func (o *Orchestrator) Check(ctx context.Context) (CheckResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.setState(StateChecking)
	result := CheckResult{Current: DisplayVersion(o.current)}
	releases, err := o.feed.ListReleases(ctx)
	if err != nil {
		o.setState(StateFailed)
		return result, newError(KindNetworkFailure, "check for updates", err)
	}
	o.markChecked(ctx)

	release, latest, ok := latestEligible(releases)
	current := canonicalVersion(o.current)
	if current == "" {
		o.logger.Debug("skipping update check for development build", logging.F("version", o.current))
		o.setState(StateUpToDate)
		return result, nil
	}
	if !ok || semver.Compare(latest, current) <= 0 {
		o.setState(StateUpToDate)
		return result, nil
	}
	asset, ok := selectAsset(release, o.assetName)
	if !ok {
		o.setState(StateFailed)
		return result, newError(KindNoCompatibleAsset, fmt.Sprintf("release %s has no %q asset", release.TagName, o.assetName), nil)
	}
	result.Available = true
	result.Version = DisplayVersion(latest)
	result.Asset = asset
	result.Notes = release.Body
	o.setState(StateAvailable)
	o.logger.Info("update available", logging.F("current", result.Current), logging.F("latest", result.Version))
	return result, nil
}

func (o *Orchestrator) markChecked(ctx context.Context) {
	cp, err := o.checkpoints.Load(ctx)
	if err != nil {
		cp = &types.UpdateCheckpoint{}
	}
	now := o.now().UTC()
	cp.LastCheck = &now
	if err := o.checkpoints.Save(ctx, cp); err != nil {
		o.logger.Warn("record update check failed", logging.Err(err))
	}
}

// Download stages and verifies the artifact at url. The checkpoint is marked
// partial before any byte is written, so an interrupted download is
// discarded on the next launch.
func (o *Orchestrator) Download(ctx context.Context, url, version string, progress ProgressFunc) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	version = DisplayVersion(version)
	if err := os.MkdirAll(o.stagingDir, 0o755); err != nil {
		return "", newError(KindStaging, "create staging directory", err)
	}
	cp, err := o.checkpoints.Load(ctx)
	if err != nil {
		cp = &types.UpdateCheckpoint{}
	}
	cp.PendingPath = ""
	cp.PendingSHA256 = ""
	cp.PendingVersion = version
	cp.PartialDownload = true
	if err := o.checkpoints.Save(ctx, cp); err != nil {
		return "", newError(KindStaging, "record download start", err)
	}

	o.setState(StateDownloading)
	assetFile := downloadFileName(url)
	downloaded := filepath.Join(o.stagingDir, assetFile)
	partial := downloaded + ".partial"
	final := filepath.Join(o.stagingDir, fmt.Sprintf("%s-%s", BinaryName, version))

	if err := o.fetch(ctx, url, partial, progress); err != nil {
		_ = os.Remove(partial)
		return "", o.abandon(ctx, err)
	}
	if err := o.rename(partial, downloaded); err != nil {
		_ = os.Remove(partial)
		return "", o.abandon(ctx, newError(KindStaging, "finalize download", err))
	}
	if strings.HasSuffix(assetFile, archiveSuffix) {
		err := extractBinary(downloaded, final)
		_ = os.Remove(downloaded)
		if err != nil {
			_ = os.Remove(final)
			return "", o.abandon(ctx, newError(KindStaging, "extract update archive", err))
		}
	} else if downloaded != final {
		if err := o.rename(downloaded, final); err != nil {
			_ = os.Remove(downloaded)
			return "", o.abandon(ctx, newError(KindStaging, "stage update", err))
		}
	}
	if err := os.Chmod(final, 0o755); err != nil {
		_ = os.Remove(final)
		return "", o.abandon(ctx, newError(KindStaging, "mark update executable", err))
	}

	o.setState(StateVerifying)
	digest, err := fileSHA256(final)
	if err != nil {
		_ = os.Remove(final)
		return "", o.abandon(ctx, newError(KindStaging, "hash update", err))
	}
	if _, err := o.selfTest(ctx, final); err != nil {
		_ = os.Remove(final)
		return "", o.abandon(ctx, newError(KindUpdateVerificationFailed, "downloaded binary failed its self-test", err))
	}

	cp.PendingPath = final
	cp.PendingSHA256 = digest
	cp.PartialDownload = false
	if err := o.checkpoints.Save(ctx, cp); err != nil {
		_ = os.Remove(final)
		return "", o.abandon(ctx, newError(KindStaging, "record staged update", err))
	}
	o.setState(StateReady)
	o.logger.Info("update staged", logging.F("version", version), logging.F("path", final), logging.F("sha256", digest))
	return final, nil
}

// abandon clears the checkpoint after a handled failure and returns err.
func (o *Orchestrator) abandon(ctx context.Context, err error) error {
	o.setState(StateFailed)
	if clearErr := o.checkpoints.Clear(ctx); clearErr != nil {
		o.logger.Warn("clear update checkpoint failed", logging.Err(clearErr))
	}
	o.logger.Warn("update abandoned", logging.Err(err))
	return err
}

func (o *Orchestrator) fetch(ctx context.Context, url, dest string, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return newError(KindNetworkFailure, "build download request", err)
	}
	req.Header.Set("User-Agent", BinaryName)
	resp, err := o.http.Do(req)
	if err != nil {
		return newError(KindNetworkFailure, "download update", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(KindNetworkFailure, fmt.Sprintf("download update: %s", resp.Status), nil)
	}
	if err := writeStream(dest, resp.Body, resp.ContentLength, progress); err != nil {
		return newError(KindNetworkFailure, "download update", err)
	}
	return nil
}

func downloadFileName(rawURL string) string {
	trimmed := rawURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	name := path.Base(trimmed)
	if name == "" || name == "." || name == "/" {
		return BinaryName
	}
	return name
}

// ApplyPending installs a staged update. The running binary is backed up,
// replaced, and self-tested; a failing self-test restores the backup.
func (o *Orchestrator) ApplyPending(ctx context.Context) (ApplyResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	cp, err := o.checkpoints.Load(ctx)
	if err != nil {
		o.logger.Warn("discarding unreadable update checkpoint", logging.Err(err))
		_ = o.checkpoints.Clear(ctx)
		return ApplyNothingPending, nil
	}
	if !cp.HasPending() {
		return ApplyNothingPending, nil
	}
	if _, err := os.Stat(cp.PendingPath); err != nil {
		_ = o.checkpoints.Clear(ctx)
		return ApplyNothingPending, nil
	}

	exe, err := o.executable()
	if err != nil {
		o.setState(StateFailed)
		return ApplyFailed, newError(KindStaging, "locate running binary", err)
	}
	backup := exe + ".backup"
	if o.installedPending(cp, exe) && fileExists(backup) {
		o.logger.Warn("finishing interrupted update apply", logging.F("version", cp.PendingVersion))
		o.setState(StateApplying)
		return o.finishApply(ctx, cp, exe, backup)
	}

	o.setState(StateVerifying)
	digest, err := fileSHA256(cp.PendingPath)
	if err != nil || !strings.EqualFold(digest, cp.PendingSHA256) {
		_ = os.Remove(cp.PendingPath)
		return ApplyFailed, o.abandon(ctx, newError(KindIntegrityMismatch, "staged update failed its integrity check", err))
	}

	o.setState(StateApplying)
	if err := copyFile(exe, backup, 0); err != nil {
		_ = os.Remove(backup)
		o.setState(StateFailed)
		return ApplyFailed, newError(KindStaging, "back up running binary", err)
	}
	if err := o.install(cp.PendingPath, exe); err != nil {
		_ = os.Remove(backup)
		o.setState(StateFailed)
		return ApplyFailed, newError(KindStaging, "install update", err)
	}
	return o.finishApply(ctx, cp, exe, backup)
}

// finishApply self-tests the installed binary and either commits the update
// or restores backup. A failed restore keeps the checkpoint and the backup so
// the next Startup retries it.
func (o *Orchestrator) finishApply(ctx context.Context, cp *types.UpdateCheckpoint, exe, backup string) (ApplyResult, error) {
	if _, testErr := o.selfTest(ctx, exe); testErr != nil {
		if restoreErr := o.rename(backup, exe); restoreErr != nil {
			o.setState(StateFailed)
			o.logger.Error("update rollback failed", logging.F("binary", exe), logging.F("backup", backup), logging.Err(restoreErr))
			return ApplyFailed, newError(KindRollbackFailed,
				fmt.Sprintf("update rollback failed; reinstall %s manually (backup kept at %s)", BinaryName, backup),
				errors.Join(testErr, restoreErr))
		}
		_ = os.Remove(cp.PendingPath)
		_ = o.checkpoints.Clear(ctx)
		o.setState(StateRolledBack)
		o.logger.Warn("update rolled back", logging.Err(testErr))
		return ApplyRolledBack, newError(KindUpdateVerificationFailed, "installed update failed its self-test and was rolled back", testErr)
	}

	_ = os.Remove(backup)
	_ = os.Remove(cp.PendingPath)
	if err := o.checkpoints.Clear(ctx); err != nil {
		o.logger.Warn("clear update checkpoint failed", logging.Err(err))
	}
	o.setState(StateApplied)
	o.logger.Info("update applied", logging.F("version", cp.PendingVersion))
	return ApplyApplied, nil
}

// installedPending reports whether exe already holds the staged update,
// which together with a backup marks an apply that never finished.
func (o *Orchestrator) installedPending(cp *types.UpdateCheckpoint, exe string) bool {
	if cp == nil || strings.TrimSpace(cp.PendingSHA256) == "" {
		return false
	}
	digest, err := fileSHA256(exe)
	return err == nil && strings.EqualFold(digest, cp.PendingSHA256)
}

// ResumeInterrupted completes an apply that crashed between replacing the
// binary and its self-test. A backup left by an apply that never replaced
// the binary is removed.
func (o *Orchestrator) ResumeInterrupted(ctx context.Context) (ApplyResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	exe, err := o.executable()
	if err != nil {
		return ApplyNothingPending, nil
	}
	backup := exe + ".backup"
	if !fileExists(backup) {
		return ApplyNothingPending, nil
	}
	cp, err := o.checkpoints.Load(ctx)
	if err != nil || !o.installedPending(cp, exe) {
		if err := os.Remove(backup); err == nil {
			o.logger.Info("removed backup from an unfinished apply", logging.F("path", backup))
		}
		return ApplyNothingPending, nil
	}
	o.logger.Warn("finishing interrupted update apply", logging.F("version", cp.PendingVersion))
	o.setState(StateApplying)
	return o.finishApply(ctx, cp, exe, backup)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// install copies src next to dst and renames it into place.
func (o *Orchestrator) install(src, dst string) error {
	tmp := dst + ".new"
	if err := copyFile(src, tmp, 0o755); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := o.rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// DiscardStale drops a checkpoint left by an interrupted download or one
// that points at a missing artifact. It reports whether anything was dropped.
func (o *Orchestrator) DiscardStale(ctx context.Context) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	cp, err := o.checkpoints.Load(ctx)
	if err != nil {
		o.logger.Warn("discarding unreadable update checkpoint", logging.Err(err))
		return true, o.checkpoints.Clear(ctx)
	}
	stale := cp.PartialDownload
	if pending := strings.TrimSpace(cp.PendingPath); pending != "" {
		if _, err := os.Stat(pending); err != nil || cp.PendingSHA256 == "" {
			stale = true
		}
	}
	if !stale {
		return false, nil
	}
	if cp.PendingPath != "" {
		_ = os.Remove(cp.PendingPath)
	}
	o.logger.Info("discarding stale update checkpoint",
		logging.F("version", cp.PendingVersion),
		logging.F("partial", cp.PartialDownload),
	)
	return true, o.checkpoints.Clear(ctx)
}

// CleanupStaging removes partial downloads and any staged file the
// checkpoint no longer references, plus leftovers next to the binary.
func (o *Orchestrator) CleanupStaging(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	keep := ""
	cp, err := o.checkpoints.Load(ctx)
	if err != nil {
		cp = nil
	}
	if cp.HasPending() {
		keep = filepath.Clean(cp.PendingPath)
	}
	entries, err := os.ReadDir(o.stagingDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return newError(KindStaging, "read staging directory", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(o.stagingDir, entry.Name())
		if filepath.Clean(full) == keep {
			continue
		}
		if err := os.Remove(full); err != nil {
			o.logger.Warn("remove staging file failed", logging.F("path", full), logging.Err(err))
		}
	}
	if exe, err := o.executable(); err == nil {
		leftovers := []string{exe + ".new"}
		if !o.installedPending(cp, exe) {
			leftovers = append(leftovers, exe+".backup")
		}
		for _, leftover := range leftovers {
			if err := os.Remove(leftover); err == nil {
				o.logger.Info("removed update leftover", logging.F("path", leftover))
			}
		}
	}
	return nil
}
