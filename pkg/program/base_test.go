package program

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/switchbot"
	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/statemachine"
)

func sampleMetadata() domain.ProgramMetadata {
	return domain.ProgramMetadata{
		Name:        "Sample",
		Description: "A sample program",
		Options: []domain.Option{
			domain.SelectionOption{
				OptionBase:        domain.OptionBase{Name: "Mode", AllowChangeAtRuntime: true},
				Choices:           []string{"fast", "slow"},
				DefaultValueIndex: 1,
			},
			domain.IntOption{
				OptionBase: domain.OptionBase{Name: "Count"},
				Default:    3,
				MinValue:   domain.IntPtr(1),
			},
			domain.BoolOption{
				OptionBase: domain.OptionBase{Name: "Save screenshots"},
			},
		},
	}
}

func TestBase_DefaultsAndUpdates(t *testing.T) {
	b := NewBase(sampleMetadata(), nil)

	assert.Equal(t, map[string]any{"Mode": "slow", "Count": 3, "Save screenshots": false}, b.OptionValues())

	b.OnOptionsUpdated(map[string]any{"Mode": "fast", "Count": 5, "Save screenshots": true})
	v, ok := b.OptionValue("Mode")
	assert.True(t, ok)
	assert.Equal(t, "fast", v)

	// The returned map is a copy.
	values := b.OptionValues()
	values["Mode"] = "mutated"
	v, _ = b.OptionValue("Mode")
	assert.Equal(t, "fast", v)
}

func TestBase_DecodeOptions(t *testing.T) {
	b := NewBase(sampleMetadata(), nil)
	b.OnOptionsUpdated(map[string]any{"Mode": "fast", "Count": float64(7), "Save screenshots": true})

	var settings struct {
		Mode        string `option:"Mode"`
		Count       int    `option:"Count"`
		Screenshots bool   `option:"Save screenshots"`
	}
	require.NoError(t, b.DecodeOptions(&settings))
	assert.Equal(t, "fast", settings.Mode)
	assert.Equal(t, 7, settings.Count)
	assert.True(t, settings.Screenshots)
}

func TestBase_AskWithoutDisplay(t *testing.T) {
	b := NewBase(sampleMetadata(), nil)

	done := make(chan string, 1)
	go func() {
		answer, err := b.Ask(context.Background(), &switchbot.Bot{}, domain.NewDialog("t", "c", "Ok"))
		if err == nil {
			done <- answer
		}
	}()

	require.Eventually(t, func() bool { return b.CurrentDialog() != nil }, time.Second, time.Millisecond)
	assert.True(t, b.OnUserInteraction("Ok"))
	assert.Equal(t, "Ok", <-done)
	assert.Nil(t, b.CurrentDialog())
}

func TestBase_NewMachineUsesHooks(t *testing.T) {
	b := NewBase(sampleMetadata(), nil)

	var entered []string
	b.SetStateHooks(statemachine.Hooks{
		OnStateEnter: func(_ context.Context, state string) { entered = append(entered, state) },
	})

	second := statemachine.StateFunc(func(context.Context) (statemachine.State, error) { return nil, nil })
	first := statemachine.StateFunc(func(context.Context) (statemachine.State, error) { return second, nil })

	require.NoError(t, b.NewMachine(first).Run(context.Background()))
	assert.Len(t, entered, 2)
}
