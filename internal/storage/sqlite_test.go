package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarcraft/bosforge/internal/common"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStorage(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestProjectFieldsRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	payload := map[string]any{
		"sys1_solar_panel_make":     "Q CELLS",
		"bos_sys1_type1_is_new":     true,
		"bos_sys1_type1_amp_rating": "100",
	}
	require.NoError(t, store.SaveFields(ctx, "p1", payload))

	fields, err := store.Fields(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Q CELLS", fields["sys1_solar_panel_make"])
	assert.Equal(t, "true", fields["bos_sys1_type1_is_new"])
	assert.Equal(t, "100", fields["bos_sys1_type1_amp_rating"])
}

func TestSaveFieldsUpserts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveFields(ctx, "p1", map[string]any{"utility_name": "APS"}))
	require.NoError(t, store.SaveFields(ctx, "p1", map[string]any{"utility_name": "SRP"}))

	fields, err := store.Fields(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "SRP", fields["utility_name"])
}

func TestFieldsUnknownProject(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.Fields(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveFieldsRejectsEmptyPayload(t *testing.T) {
	store := newTestStorage(t)

	err := store.SaveFields(context.Background(), "p1", nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

const seedYAML = `
batteries:
  - make: FranklinWH
    model: aPower 2
    couple_type: AC
inverters:
  - make: SolarEdge
    model: SE7600H-US
    max_cont_output_amps: 32
equipment:
  - type: AC Disconnect
    make: Eaton
    model: DG222URB
    amp_rating: 60
  - type: AC Disconnect
    make: Eaton
    model: DG221URB
    amp_rating: 30
preferences:
  - company_id: co1
    type: AC Disconnect
    make: Siemens
    model: WN2060U
    default: true
  - company_id: co1
    type: AC Disconnect
    make: Eaton
    model: DG221URB
utilities:
  - name: APS
    state: AZ
    combination: standard
    bos_types: ["PV Meter", "AC Disconnect"]
`

func seedTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store := newTestStorage(t)

	ticks := 0
	n, err := store.SeedFromYAML(context.Background(), strings.NewReader(seedYAML), func(int) { ticks++ })
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.Equal(t, 7, ticks)
	return store
}

func TestSeedAndCatalogLookups(t *testing.T) {
	store := seedTestStorage(t)
	ctx := context.Background()

	items, err := store.ByType(ctx, "AC Disconnect")
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Smallest amp rating first.
	assert.Equal(t, "DG221URB", items[0].Model)
	assert.Equal(t, 30.0, items[0].Amp)

	// Case-insensitive type lookup.
	items, err = store.ByType(ctx, "ac disconnect")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	none, err := store.ByType(ctx, "Transfer Switch")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBatteryAndInverterViews(t *testing.T) {
	store := seedTestStorage(t)
	ctx := context.Background()

	batteries, err := store.Batteries().ModelsByMake(ctx, "franklinwh")
	require.NoError(t, err)
	require.Len(t, batteries, 1)
	assert.Equal(t, "aPower 2", batteries[0].Model)
	assert.Equal(t, "AC", batteries[0].CoupleType)

	inverters, err := store.Inverters().ModelsByMake(ctx, "SolarEdge")
	require.NoError(t, err)
	require.Len(t, inverters, 1)
	assert.Equal(t, 32.0, inverters[0].MaxContOutputAmps)
}

func TestPreferencesDefaultFirst(t *testing.T) {
	store := seedTestStorage(t)

	prefs, err := store.ByCompanyAndType(context.Background(), "co1", "AC Disconnect")
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.True(t, prefs[0].IsDefault)
	assert.Equal(t, "Siemens", prefs[0].Make)

	none, err := store.ByCompanyAndType(context.Background(), "co2", "AC Disconnect")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUtilityRequirements(t *testing.T) {
	store := seedTestStorage(t)
	ctx := context.Background()

	row, err := store.ByUtility(ctx, "aps")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "AZ", row.State)
	assert.Equal(t, "PV Meter", row.BOSTypes[0])
	assert.Equal(t, "", row.BOSTypes[2])

	missing, err := store.ByUtility(ctx, "Xcel")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSeedUpsertsExistingRows(t *testing.T) {
	store := seedTestStorage(t)
	ctx := context.Background()

	update := `
batteries:
  - make: FranklinWH
    model: aPower 2
    couple_type: DC
`
	_, err := store.SeedFromYAML(ctx, strings.NewReader(update), nil)
	require.NoError(t, err)

	batteries, err := store.Batteries().ModelsByMake(ctx, "FranklinWH")
	require.NoError(t, err)
	require.Len(t, batteries, 1)
	assert.Equal(t, "DC", batteries[0].CoupleType)
}
