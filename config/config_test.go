package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagenius/agency-crm/internal/application/feature"
)

func TestFromEnvironment_Defaults(t *testing.T) {
	cfg, err := FromEnvironment()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, "Asia/Kathmandu", cfg.App.Timezone)
	require.NotNil(t, cfg.App.Location)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, FilesLocal, cfg.Files.Backend)
	assert.Equal(t, []string{"demo"}, cfg.Pipeline.AgencyIDs)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.False(t, cfg.Redis.Enabled)
	assert.GreaterOrEqual(t, len(cfg.Auth.JWTSecret), 16)
	assert.True(t, cfg.Features.IsEnabled(feature.WorkflowAutomation))
}

func TestFromEnvironment_Overrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://crm:secret@db:5432/crm?sslmode=disable")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("AGENCY_IDS", "demo, acme ,")
	t.Setenv("SCHEDULER_DUE_SOON_INTERVAL", "30s")
	t.Setenv("APP_TIMEZONE", "UTC")

	cfg, err := FromEnvironment()
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.Storage.Backend)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.Equal(t, []string{"demo", "acme"}, cfg.Pipeline.AgencyIDs)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.DueSoonInterval)
	assert.Equal(t, time.UTC, cfg.App.Location)
}

func TestFromEnvironment_CollectsErrors(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	t.Setenv("STORAGE_BACKEND", "firestore")
	t.Setenv("FILES_BACKEND", "gcs")

	_, err := FromEnvironment()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "configuration errors:")
	assert.Contains(t, msg, "APP_TIMEZONE")
	assert.Contains(t, msg, "FIRESTORE_PROJECT_ID")
	assert.Contains(t, msg, "FILES_GCS_BUCKET")
	assert.Contains(t, msg, "AUTH_JWT_SECRET")
}

func TestFromEnvironment_MemoryStoreRejectedInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "a-production-secret-value")

	_, err := FromEnvironment()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_BACKEND=memory")
}

func TestFeatureFlags_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FEATURE_WORKFLOW_AUTOMATION", "false")
	t.Setenv("FEATURE_EXCLUDE_WAIVED_DOCUMENTS_AGENCIES", "acme")

	ff, err := LoadFeatureFlags()
	require.NoError(t, err)

	assert.False(t, ff.EnabledFor(feature.WorkflowAutomation, "demo"))
	assert.True(t, ff.EnabledFor(feature.ExcludeWaivedDocuments, "acme"))
	assert.False(t, ff.EnabledFor(feature.ExcludeWaivedDocuments, "demo"))
	assert.True(t, ff.EnabledFor(feature.CountryLock, "demo"))
}

func TestFeatureFlags_RolloutIsStablePerAgency(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRollout(feature.ExcludeWaivedDocuments, 50))

	first := ff.EnabledFor(feature.ExcludeWaivedDocuments, "acme")
	for range 10 {
		assert.Equal(t, first, ff.EnabledFor(feature.ExcludeWaivedDocuments, "acme"))
	}
	assert.False(t, ff.IsEnabled(feature.ExcludeWaivedDocuments))

	assert.ErrorIs(t, ff.SetRollout(feature.ExcludeWaivedDocuments, 101), ErrBadRollout)
	assert.ErrorIs(t, ff.SetRollout("unknown", 10), ErrUnknownFeature)
}

func TestFeatureFlags_AgencyListsAndWindow(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.Disable(feature.EmailOnVisa))
	require.NoError(t, ff.SetAgency(feature.EmailOnVisa, "acme", true))
	require.NoError(t, ff.SetAgency(feature.CountryLock, "demo", false))

	assert.True(t, ff.EnabledFor(feature.EmailOnVisa, "acme"))
	assert.False(t, ff.EnabledFor(feature.EmailOnVisa, "demo"))
	assert.False(t, ff.EnabledFor(feature.CountryLock, "demo"))

	ff.ClearAgency("acme")
	ff.ClearAgency("demo")
	assert.False(t, ff.EnabledFor(feature.EmailOnVisa, "acme"))
	assert.True(t, ff.EnabledFor(feature.CountryLock, "demo"))

	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	ff.now = func() time.Time { return now }
	ff.flags[feature.CountryLock].Until = now.Add(-time.Hour)
	assert.False(t, ff.EnabledFor(feature.CountryLock, "demo"))

	assert.Equal(t, []string{
		feature.CountryLock,
		feature.DueSoonNotifications,
		feature.EmailOnVisa,
		feature.ExcludeWaivedDocuments,
		feature.SeedDemoData,
		feature.WorkflowAutomation,
	}, ff.Names())
}

func TestFeatureFlags_ApplyYAML(t *testing.T) {
	ff := NewFeatureFlags()
	err := ff.ApplyYAML([]byte(`
email_on_visa:
  rollout: 0
  agencies: [acme]
country_lock:
  rollout: 100
  exclude: [legacy]
`))
	require.NoError(t, err)

	assert.True(t, ff.EnabledFor(feature.EmailOnVisa, "acme"))
	assert.False(t, ff.EnabledFor(feature.EmailOnVisa, "demo"))
	assert.False(t, ff.EnabledFor(feature.CountryLock, "legacy"))
	assert.True(t, ff.EnabledFor(feature.CountryLock, "demo"))

	assert.ErrorIs(t, ff.ApplyYAML([]byte("nope:\n  rollout: 10\n")), ErrUnknownFeature)
	assert.ErrorIs(t, ff.ApplyYAML([]byte("country_lock:\n  rollout: 120\n")), ErrBadRollout)
}

func TestLoadFeatureFlags_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workflow_automation:\n  rollout: 0\n"), 0o600))
	t.Setenv("FEATURES_FILE", path)

	ff, err := LoadFeatureFlags()
	require.NoError(t, err)
	assert.False(t, ff.IsEnabled(feature.WorkflowAutomation))

	t.Setenv("FEATURES_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = LoadFeatureFlags()
	assert.Error(t, err)
}

func TestFeatureFlags_SnapshotIsCopy(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetAgency(feature.EmailOnVisa, "acme", true))

	snap := ff.Snapshot()
	require.Len(t, snap, len(ff.Names()))
	for i := range snap {
		snap[i].On = append(snap[i].On, "intruder")
	}
	assert.False(t, ff.EnabledFor(feature.EmailOnVisa, "intruder"))
}
