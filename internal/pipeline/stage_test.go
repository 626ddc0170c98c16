package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"phpsema/internal/ast"
	"phpsema/internal/ast/asttest"
	"phpsema/internal/symbols"
)

func TestChain_StopsOnFirstError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	var ran []string
	stage := func(name string, err error) Stage {
		return NewStage(name, func(_ context.Context, u *symbols.Unit) error {
			ran = append(ran, name)
			return err
		})
	}
	boom := errors.New("boom")
	chain := NewChain(otel.Tracer("test"), logger,
		stage("first", nil),
		stage("second", boom),
		stage("third", nil),
	)

	u := symbols.NewIndex().NewUnit("a.php", asttest.New().File("a.php"))
	results := chain.Run(context.Background(), u)

	require.Len(t, results, 2)
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, "a.php", results[0].Unit)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.ErrorIs(t, firstError(results), boom)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.WarnLevel, last.Level)
	assert.Equal(t, "second", last.Data["stage"])
}

func TestChain_CanceledContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	called := false
	chain := NewChain(otel.Tracer("test"), logger, NewStage("never", func(context.Context, *symbols.Unit) error {
		called = true
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := chain.Run(ctx, symbols.NewIndex().NewUnit("a.php", asttest.New().File("a.php")))

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.False(t, called)
}

func TestStatsOf(t *testing.T) {
	ix := symbols.NewIndex()
	u := ix.NewUnit("a.php", asttest.New().File("a.php"))
	u.Top.Declare(&symbols.Declaration{Name: "x", Kind: symbols.KindVariable})
	u.AddUse(symbols.Use{Name: "$x", Kind: symbols.KindVariable, Decl: u.Declarations()[0]})
	u.AddUse(symbols.Use{Name: "Gone", Kind: symbols.KindClass, Range: ast.Range{Start: 4, End: 8}})

	stats := statsOf(u)
	assert.Equal(t, StageStats{Declarations: 1, Uses: 2, Unresolved: 1}, stats)
}
