package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlhq/answerplane/models"
)

func TestSettingsDefaultsOnFirstAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	settings, err := store.Settings(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", settings.TenantID)
	assert.Equal(t, DefaultPlanName, settings.Plan)
	assert.False(t, settings.FallbackEnabled)
	assert.True(t, settings.GuardrailsEnabled)
}

func TestSetPlan(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SetPlan(ctx, "acme", "pro"))
	settings, err := store.Settings(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "pro", settings.Plan)

	assert.Error(t, store.SetPlan(ctx, "acme", "platinum"), "unknown plan rejected")
}

func TestTogglesPreserveOtherFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SetPlan(ctx, "acme", "enterprise"))
	require.NoError(t, store.SetFallbackEnabled(ctx, "acme", true))
	require.NoError(t, store.SetGuardrailsEnabled(ctx, "acme", false))

	settings, err := store.Settings(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "enterprise", settings.Plan)
	assert.True(t, settings.FallbackEnabled)
	assert.False(t, settings.GuardrailsEnabled)
}

func TestRoutingDefaultsToLocalProvider(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sel, err := store.Routing(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "ollama", sel.Provider)
	assert.Empty(t, sel.ChatModel)

	require.NoError(t, store.SetRouting(ctx, "acme", models.ModelSelection{
		Provider:  "openai",
		ChatModel: "gpt-4o-mini",
	}))

	sel, err = store.Routing(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "openai", sel.Provider)
	assert.Equal(t, "gpt-4o-mini", sel.ChatModel)
}

func TestPlanForResolvesCatalogEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	plan, err := store.PlanFor(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "free", plan.Name)
	assert.Equal(t, 3000, plan.MonthlyRequests)
	assert.Equal(t, 300, plan.BurstCredits)

	require.NoError(t, store.SetPlan(ctx, "acme", "pro"))
	plan, err = store.PlanFor(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 100000, plan.MonthlyRequests)
}
