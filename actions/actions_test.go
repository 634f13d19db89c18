package actions

import (
	"testing"

	lserrors "github.com/amp-labs/logicstates/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allParams() []Param {
	return []Param{
		CommitStartParam{Denomination: 1, BetAmount: 25, Wagers: []Wager{{Name: "lines", Amount: 20}, {Name: "ante", Amount: 5}}},
		StartNewThemeParam{ThemeID: "dragon-gold", Denomination: 5, Properties: map[string]string{"paytable": "94"}},
		SwitchCoplayerThemeParam{Coplayer: 1, ThemeID: "lucky-7", Denomination: 1},
		ShutDownCoplayerParam{Coplayer: 2},
		RequestChooserParam{Coplayer: 0},
		RequestCashoutParam{Reason: "player"},
		AddCreditsParam{Amount: 1000, Denomination: 1},
	}
}

func TestDeepClone(t *testing.T) {
	t.Parallel()

	for _, p := range allParams() {
		t.Run(p.ActionName(), func(t *testing.T) {
			t.Parallel()

			clone := p.DeepClone()
			assert.Equal(t, p, clone)
			assert.Equal(t, p.ActionName(), clone.ActionName())
		})
	}
}

func TestDeepCloneSharesNoMemory(t *testing.T) {
	t.Parallel()

	commit := CommitStartParam{Wagers: []Wager{{Name: "lines", Amount: 20}}}
	commitClone, ok := commit.DeepClone().(CommitStartParam)
	require.True(t, ok)

	commitClone.Wagers[0].Amount = 99
	assert.Equal(t, int64(20), commit.Wagers[0].Amount)

	theme := StartNewThemeParam{Properties: map[string]string{"paytable": "94"}}
	themeClone, ok := theme.DeepClone().(StartNewThemeParam)
	require.True(t, ok)

	themeClone.Properties["paytable"] = "96"
	assert.Equal(t, "94", theme.Properties["paytable"])
}

func TestDecodeIdle(t *testing.T) {
	t.Parallel()

	param := CommitStartParam{Denomination: 1, BetAmount: 10, Wagers: []Wager{{Name: "lines", Amount: 10}}}

	action, ok, err := DecodeIdle(CommitStart, param)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, param, action)

	action, ok, err = DecodeIdle(CommitStart, &param)
	require.NoError(t, err)
	require.True(t, ok)

	commit, isCommit := action.(CommitStartParam)
	require.True(t, isCommit)

	commit.Wagers[0].Amount = 1
	assert.Equal(t, int64(10), param.Wagers[0].Amount, "decoded actions are clones")

	action, ok, err = DecodeIdle("Spin", param)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, action)

	_, ok, err = DecodeIdle(CommitStart, StartNewThemeParam{})
	assert.True(t, ok)
	require.ErrorIs(t, err, ErrPayloadMismatch)
	require.ErrorIs(t, err, lserrors.ErrWrongType)

	_, _, err = DecodeIdle(CommitStart, nil)
	require.ErrorIs(t, err, ErrPayloadMismatch)

	_, _, err = DecodeIdle(CommitStart, (*CommitStartParam)(nil))
	require.ErrorIs(t, err, ErrPayloadMismatch)
}

func TestDecodeShellIdle(t *testing.T) {
	t.Parallel()

	for _, p := range allParams() {
		if p.ActionName() == CommitStart {
			_, ok, err := DecodeShellIdle(p.ActionName(), p)
			require.NoError(t, err)
			assert.False(t, ok, "CommitStart is not a shell action")

			continue
		}

		action, ok, err := DecodeShellIdle(p.ActionName(), p)
		require.NoError(t, err, p.ActionName())
		require.True(t, ok)
		assert.Equal(t, p, action)
	}

	_, ok, err := DecodeShellIdle(StartNewTheme, ShutDownCoplayerParam{Coplayer: 1})
	assert.True(t, ok)
	require.ErrorIs(t, err, ErrPayloadMismatch)
}

func TestMarshalUnmarshal(t *testing.T) {
	t.Parallel()

	for _, p := range allParams() {
		data, err := Marshal(p)
		require.NoError(t, err)

		decoded, ok, err := Unmarshal(p.ActionName(), data)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, p, decoded, p.ActionName())
	}

	_, ok, err := Unmarshal("Spin", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = Unmarshal(CommitStart, []byte{0xff})
	assert.True(t, ok)
	require.Error(t, err)
}
