package generator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
)

func TestParseDescription(t *testing.T) {
	steps := parseDescription("First receive the order, then check stock. If in stock then ship the order otherwise notify the customer. Finally evaluate the discount rule")
	require.Len(t, steps, 4)

	assert.Equal(t, step{Kind: stepTask, Name: "Receive the order"}, steps[0])
	assert.Equal(t, step{Kind: stepTask, Name: "Check stock", TaskType: "user"}, steps[1])

	choice := steps[2]
	assert.Equal(t, stepChoice, choice.Kind)
	assert.Equal(t, "In stock", choice.Condition)
	require.Len(t, choice.Yes, 1)
	assert.Equal(t, "Ship the order", choice.Yes[0].Name)
	require.Len(t, choice.No, 1)
	assert.Equal(t, "Notify the customer", choice.No[0].Name)
	assert.Equal(t, "service", choice.No[0].TaskType)

	assert.Equal(t, stepDecision, steps[3].Kind)
	assert.Equal(t, "Evaluate the discount rule", steps[3].Name)
}

func TestParseDescription_InlineCondition(t *testing.T) {
	steps := parseDescription("receive invoice, then if amount is high, approve it")
	require.Len(t, steps, 2)
	assert.Equal(t, "Receive invoice", steps[0].Name)
	assert.Equal(t, stepChoice, steps[1].Kind)
	assert.Equal(t, "Amount is high", steps[1].Condition)
	assert.Len(t, steps[1].Yes, 1)
	assert.Empty(t, steps[1].No)
}

func TestGenerate_Importable(t *testing.T) {
	xml, err := Generate("First receive the order, then decide the shipping method. If express then book courier otherwise book freight")
	require.NoError(t, err)

	e := diagram.NewEngine()
	warnings, err := e.ImportXML(xml)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	byName := map[string]*diagram.Element{}
	var flows int
	for _, el := range e.Elements() {
		if el.IsFlow() {
			flows++
			assert.NotEmpty(t, el.Waypoints, el.ID)
			continue
		}
		require.NotNil(t, el.Bounds, el.ID)
		byName[el.Name] = el
	}

	require.Contains(t, byName, "Decide the shipping method")
	assert.Equal(t, diagram.TypeBusinessRuleTask, byName["Decide the shipping method"].Type)
	assert.True(t, diagram.IsDecisionTask(byName["Decide the shipping method"]))
	require.Contains(t, byName, "Express?")
	assert.Equal(t, diagram.TypeExclusiveGateway, byName["Express?"].Type)
	require.Contains(t, byName, "End")

	// start, two tasks, split, two branch tasks, unnamed join, end
	assert.Len(t, byName, 8)
	assert.Equal(t, 8, flows)

	assert.Greater(t, byName["Book courier"].Bounds.X, byName["Express?"].Bounds.X)
	assert.Greater(t, byName["Book freight"].Bounds.Y, byName["Book courier"].Bounds.Y)
	assert.Greater(t, byName["End"].Bounds.X, byName["Book freight"].Bounds.X)
}

func TestGenerate_NoSteps(t *testing.T) {
	_, err := Generate(" ...; ")
	assert.ErrorIs(t, err, ErrNoSteps)
}

func TestConversation(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2025, 4, 20, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	c := store.Get("session-a")
	require.Len(t, c.History(), 1)
	assert.Equal(t, Greeting, c.History()[0].Content)

	reply, err := c.Send("   ")
	require.NoError(t, err)
	assert.Equal(t, PromptMessage, reply.Message.Content)
	assert.Empty(t, reply.XML)
	assert.Empty(t, c.LastXML())

	reply, err = c.Send("Receive request, then approve request")
	require.NoError(t, err)
	assert.NotEmpty(t, reply.XML)
	assert.Contains(t, reply.Message.Content, "Receive request → Approve request")
	assert.Equal(t, reply.XML, c.LastXML())

	history := c.History()
	require.Len(t, history, 4)
	assert.Equal(t, RoleUser, history[2].Role)
	assert.Equal(t, RoleAssistant, history[3].Role)
	assert.Equal(t, fixed, history[3].Time)

	assert.Same(t, c, store.Get("session-a"))
	assert.NotSame(t, c, store.Get("session-b"))

	store.Reset("session-a")
	assert.Len(t, store.Get("session-a").History(), 1)
}
