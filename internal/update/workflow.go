package update

import (
	"context"
	"log/slog"
	"path/filepath"
)

// State is a step of the per-addon update state machine
type State string

const (
	StateCheckLocal    State = "CHECK_LOCAL"
	StateResolveRemote State = "RESOLVE_REMOTE"
	StateCompare       State = "COMPARE"
	StateUpToDate      State = "UP_TO_DATE"
	StateFetch         State = "FETCH"
	StateInstall       State = "INSTALL"
	StatePersistState  State = "PERSIST_STATE"
	StateDone          State = "DONE"
)

// Outcome summarizes how a workflow ended
type Outcome string

const (
	OutcomeUpToDate  Outcome = "up-to-date"
	OutcomeInstalled Outcome = "installed"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Result describes one addon's pass through the workflow
type Result struct {
	Addon     string  `json:"addon" yaml:"addon" toml:"addon"`
	Outcome   Outcome `json:"outcome" yaml:"outcome" toml:"outcome"`
	Target    string  `json:"target,omitempty" yaml:"target,omitempty" toml:"target,omitempty"`
	Current   string  `json:"current,omitempty" yaml:"current,omitempty" toml:"current,omitempty"`
	Latest    string  `json:"latest,omitempty" yaml:"latest,omitempty" toml:"latest,omitempty"`
	States    []State `json:"states,omitempty" yaml:"states,omitempty" toml:"states,omitempty"`
	Error     string  `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
	ErrorKind string  `json:"error_kind,omitempty" yaml:"error_kind,omitempty" toml:"error_kind,omitempty"`
	Err       error   `json:"-" yaml:"-" toml:"-"`
}

// Workflow runs the Fetch-Compare-Replace update for addons
type Workflow struct {
	logger *slog.Logger
}

// NewWorkflow creates a workflow reporting progress to logger
func NewWorkflow(logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Workflow{logger: logger}
}

// RunAll runs every enabled addon in order. A failed addon does not stop the
// ones after it.
func (w *Workflow) RunAll(ctx context.Context, addons []Addon) []Result {
	results := make([]Result, 0, len(addons))
	for _, addon := range addons {
		if !addon.Enabled {
			w.logger.Info("Skipping " + addon.Name)
			results = append(results, Result{Addon: addon.Name, Outcome: OutcomeSkipped})
			continue
		}
		results = append(results, w.Run(ctx, addon))
	}
	return results
}

// Run performs one pass for addon. Local state is only changed after the
// new payload was installed.
func (w *Workflow) Run(ctx context.Context, addon Addon) Result {
	res := Result{Addon: addon.Name, Target: addon.Deploy.Target()}
	targetName := filepath.Base(res.Target)

	w.logger.Info("Checking " + addon.Name)

	res.enter(StateCheckLocal)
	local, err := addon.Store.Load()
	if err != nil {
		return w.fail(res, "reading installed state", err)
	}
	res.Current = local.Value

	var remote *Release
	if !local.Present {
		if sl, ok := addon.Oracle.(StaticLocator); ok {
			w.logger.Info(targetName + " does not exist yet")
			remote = sl.Static()
		} else {
			w.logger.Info("No " + addon.Name + " version found. Installing " + addon.Name)
		}
	}

	if remote == nil {
		res.enter(StateResolveRemote)
		remote, err = addon.Oracle.Resolve(ctx)
		if err != nil {
			return w.fail(res, "resolving latest version", err)
		}
		res.Latest = remote.Version

		res.enter(StateCompare)
		if local.Matches(remote) {
			w.logger.Info(addon.Name + " is up to date, nothing to do")
			res.Outcome = OutcomeUpToDate
			res.enter(StateUpToDate)
			res.enter(StateDone)
			return res
		}

		w.logger.Info(addon.Name + " is out of date, updating...")
		w.logger.Info("Current: " + local.Value)
		w.logger.Info("Latest: " + remote.Version)
		if local.Present && IsDowngrade(local.Value, remote.Version) {
			w.logger.Warn("Latest " + addon.Name + " release " + remote.Version + " is older than installed " + local.Value)
		}
	}

	res.enter(StateFetch)
	w.logger.Info("Downloading " + addon.Name)
	staged, err := addon.Deploy.Fetch(ctx, remote)
	if err != nil {
		return w.fail(res, "downloading "+addon.Name, err)
	}

	res.enter(StateInstall)
	w.logger.Info("Installing " + targetName)
	if err := staged.Install(); err != nil {
		return w.fail(res, "installing "+targetName, err)
	}

	if _, derived := addon.Store.(derivedStore); !derived {
		res.enter(StatePersistState)
		w.logger.Info("Saving current " + addon.Name + " version: " + remote.Version)
		if err := addon.Store.Save(remote); err != nil {
			return w.fail(res, "saving installed version", err)
		}
	}

	w.logger.Info(addon.Name + " updated")
	res.Outcome = OutcomeInstalled
	res.enter(StateDone)
	return res
}

func (w *Workflow) fail(res Result, stage string, err error) Result {
	w.logger.Error(res.Addon+": failed "+stage+". Aborting", "error", err, "kind", Kind(err))
	res.Outcome = OutcomeFailed
	res.Err = err
	res.Error = err.Error()
	res.ErrorKind = Kind(err)
	res.enter(StateDone)
	return res
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
}

// Failed reports whether any result ended in failure.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
