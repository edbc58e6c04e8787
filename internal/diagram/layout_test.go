package diagram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noDIBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="Definitions_1">
  <bpmn:process id="Process_1" isExecutable="true">
    <bpmn:startEvent id="Start" name="Start"/>
    <bpmn:task id="Ship" name="Ship goods"/>
    <bpmn:businessRuleTask id="Rate" name="Rate carrier"/>
    <bpmn:endEvent id="End"/>
    <bpmn:sequenceFlow id="F1" sourceRef="Start" targetRef="Ship"/>
    <bpmn:sequenceFlow id="F2" sourceRef="Ship" targetRef="Rate"/>
    <bpmn:sequenceFlow id="F3" sourceRef="Rate" targetRef="End"/>
  </bpmn:process>
</bpmn:definitions>`

func TestRenderLayout(t *testing.T) {
	e := importSample(t, noDIBPMN)
	require.True(t, e.Highlight("Ship"))

	t.Run("png", func(t *testing.T) {
		png, err := RenderLayout(context.Background(), e, LayoutPNG)
		require.NoError(t, err)
		require.Greater(t, len(png), 8)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
	})

	t.Run("svg", func(t *testing.T) {
		svg, err := RenderLayout(context.Background(), e, LayoutSVG)
		require.NoError(t, err)
		assert.Contains(t, string(svg), "<svg")
		assert.Contains(t, string(svg), "Ship goods")
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := RenderLayout(context.Background(), e, "gif")
		assert.Error(t, err)
	})
}

func TestRenderLayout_NotImported(t *testing.T) {
	_, err := RenderLayout(context.Background(), NewEngine(), LayoutPNG)
	assert.ErrorIs(t, err, ErrNotImported)
}
