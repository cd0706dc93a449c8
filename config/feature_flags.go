package config

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sagenius/agency-crm/internal/application/feature"
)

var (
	ErrUnknownFeature = errors.New("feature flags: unknown feature")
	ErrBadRollout     = errors.New("feature flags: rollout must be 0-100")
)

// ══════════════════════════════════════════════════════════════════════════════
// FLAG
// ══════════════════════════════════════════════════════════════════════════════

// Flag is the state of one toggle.
//
// Resolution order for an agency: Off list, On list, time window, rollout.
// Rollout buckets agencies by an fnv hash of flag name and agency id, so an
// agency stays on the same side across restarts.
type Flag struct {
	Name        string `yaml:"-" json:"name"`
	Description string `yaml:"-" json:"description,omitempty"`

	Rollout int       `yaml:"rollout" json:"rollout"`
	From    time.Time `yaml:"from,omitempty" json:"from,omitzero"`
	Until   time.Time `yaml:"until,omitempty" json:"until,omitzero"`

	On  []string `yaml:"agencies,omitempty" json:"agencies,omitempty"`
	Off []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

func (f *Flag) enabledFor(agencyID string, now time.Time) bool {
	if agencyID != "" {
		if slices.Contains(f.Off, agencyID) {
			return false
		}
		if slices.Contains(f.On, agencyID) {
			return true
		}
	}
	if !f.From.IsZero() && now.Before(f.From) {
		return false
	}
	if !f.Until.IsZero() && now.After(f.Until) {
		return false
	}
	switch {
	case f.Rollout >= 100:
		return true
	case f.Rollout <= 0 || agencyID == "":
		return false
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(f.Name + "/" + agencyID))
	return int(h.Sum32()%100) < f.Rollout
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// FeatureFlags holds every toggle known to feature.Defaults and implements
// feature.Gate. It is safe for concurrent use.
type FeatureFlags struct {
	mu    sync.RWMutex
	flags map[string]*Flag
	now   func() time.Time
}

var _ feature.Gate = (*FeatureFlags)(nil)

var descriptions = map[string]string{
	feature.WorkflowAutomation:     "Generate follow-up tasks when a student changes status",
	feature.DueSoonNotifications:   "Remind counsellors about tasks due within the hour",
	feature.ExcludeWaivedDocuments: "Leave Not Required documents out of the progress denominator",
	feature.CountryLock:            "Reject a country change once a country-specific document is uploaded",
	feature.EmailOnVisa:            "Email the student when the visa is granted",
	feature.SeedDemoData:           "Seed the demo agency on startup when its store is empty",
}

// NewFeatureFlags returns the registry at default state.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{flags: make(map[string]*Flag), now: time.Now}
	for name, on := range feature.Defaults() {
		f := &Flag{Name: name, Description: descriptions[name]}
		if on {
			f.Rollout = 100
		}
		ff.flags[name] = f
	}
	return ff
}

// LoadFeatureFlags applies FEATURES_FILE (if set) and then the FEATURE_*
// variables on top of the defaults.
//
//	FEATURE_WORKFLOW_AUTOMATION=false
//	FEATURE_EXCLUDE_WAIVED_DOCUMENTS=50
//	FEATURE_EMAIL_ON_VISA_AGENCIES=acme,demo
func LoadFeatureFlags() (*FeatureFlags, error) {
	ff := NewFeatureFlags()
	if path := os.Getenv("FEATURES_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("FEATURES_FILE: %w", err)
		}
		if err := ff.ApplyYAML(raw); err != nil {
			return nil, fmt.Errorf("FEATURES_FILE %s: %w", path, err)
		}
	}
	ff.applyEnv(os.Getenv)
	return ff, nil
}

// ApplyYAML merges a document of the form
//
//	email_on_visa:
//	  rollout: 0
//	  agencies: [acme]
//
// Unknown names are rejected.
func (ff *FeatureFlags) ApplyYAML(raw []byte) error {
	var doc map[string]Flag
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()
	for name, in := range doc {
		f, ok := ff.flags[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
		if in.Rollout < 0 || in.Rollout > 100 {
			return fmt.Errorf("%w: %s=%d", ErrBadRollout, name, in.Rollout)
		}
		f.Rollout, f.From, f.Until = in.Rollout, in.From, in.Until
		f.On, f.Off = in.On, in.Off
	}
	return nil
}

func (ff *FeatureFlags) applyEnv(getenv func(string) string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	for name, f := range ff.flags {
		key := "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				f.Rollout = 0
				if b {
					f.Rollout = 100
				}
			} else if p, err := strconv.Atoi(v); err == nil && p >= 0 && p <= 100 {
				f.Rollout = p
			}
		}
		for _, id := range strings.Split(getenv(key+"_AGENCIES"), ",") {
			if id = strings.TrimSpace(id); id != "" && !slices.Contains(f.On, id) {
				f.On = append(f.On, id)
			}
		}
	}
}

// EnabledFor implements feature.Gate.
func (ff *FeatureFlags) EnabledFor(name, agencyID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	f, ok := ff.flags[name]
	return ok && f.enabledFor(agencyID, ff.now())
}

// IsEnabled reports the process-wide state, ignoring agency lists.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	return ff.EnabledFor(name, "")
}

// SetRollout changes the rollout percentage at runtime.
func (ff *FeatureFlags) SetRollout(name string, percent int) error {
	if percent < 0 || percent > 100 {
		return ErrBadRollout
	}
	return ff.update(name, func(f *Flag) { f.Rollout = percent })
}

func (ff *FeatureFlags) Enable(name string) error  { return ff.SetRollout(name, 100) }
func (ff *FeatureFlags) Disable(name string) error { return ff.SetRollout(name, 0) }

// SetAgency forces a flag on or off for one agency.
func (ff *FeatureFlags) SetAgency(name, agencyID string, on bool) error {
	return ff.update(name, func(f *Flag) {
		f.On = slices.DeleteFunc(f.On, func(s string) bool { return s == agencyID })
		f.Off = slices.DeleteFunc(f.Off, func(s string) bool { return s == agencyID })
		if on {
			f.On = append(f.On, agencyID)
		} else {
			f.Off = append(f.Off, agencyID)
		}
	})
}

// ClearAgency drops every per-agency entry for agencyID.
func (ff *FeatureFlags) ClearAgency(agencyID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	for _, f := range ff.flags {
		f.On = slices.DeleteFunc(f.On, func(s string) bool { return s == agencyID })
		f.Off = slices.DeleteFunc(f.Off, func(s string) bool { return s == agencyID })
	}
}

func (ff *FeatureFlags) update(name string, fn func(*Flag)) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	f, ok := ff.flags[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	fn(f)
	return nil
}

// Names returns the registered flag names, sorted.
func (ff *FeatureFlags) Names() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	names := make([]string, 0, len(ff.flags))
	for name := range ff.flags {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Snapshot returns copies of every flag in name order.
func (ff *FeatureFlags) Snapshot() []Flag {
	names := ff.Names()
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	out := make([]Flag, 0, len(names))
	for _, name := range names {
		f := *ff.flags[name]
		f.On, f.Off = slices.Clone(f.On), slices.Clone(f.Off)
		out = append(out, f)
	}
	return out
}
