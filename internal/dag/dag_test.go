package dag

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constNode(v any) NodeFunc {
	return func(context.Context, Inputs) (any, error) { return v, nil }
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestBuildRejectsCycle(t *testing.T) {
	_, err := NewBuilder().
		Node("a", constNode(1)).
		Node("b", constNode(2)).
		Edge("a", "b").
		Edge("b", "a").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildRejectsUnknownEdgeEndpoint(t *testing.T) {
	_, err := NewBuilder().
		Node("a", constNode(1)).
		Edge("a", "ghost").
		Build()
	require.Error(t, err)
}

func TestBuildRejectsDuplicateNode(t *testing.T) {
	_, err := NewBuilder().
		Node("a", constNode(1)).
		Node("a", constNode(2)).
		Build()
	require.Error(t, err)
}

func TestRunLinearChainPassesOutputs(t *testing.T) {
	g, err := NewBuilder().
		Node("double", func(_ context.Context, in Inputs) (any, error) {
			return in["start"].(int) * 2, nil
		}).
		Node("inc", func(_ context.Context, in Inputs) (any, error) {
			return in["double"].(int) + 1, nil
		}).
		Edge("double", "inc").
		Build()
	require.NoError(t, err)

	res := g.Run(context.Background(), map[string]any{"start": 20})
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"double", "inc"}, res.ExecutionOrder)
	assert.Equal(t, 41, res.Results["inc"].Output)
}

func TestRunTopologicalOrderForFixedTopology(t *testing.T) {
	b := NewBuilder()
	for _, id := range []string{"QueryBuild", "Collect", "ExtractText", "UnderstandVideo", "DiscoverExpand", "Sentiment"} {
		b.Node(id, constNode(id))
	}
	g, err := b.
		Edge("QueryBuild", "Collect").
		Edge("Collect", "ExtractText").
		Edge("Collect", "UnderstandVideo").
		Edge("Collect", "DiscoverExpand").
		Edge("DiscoverExpand", "UnderstandVideo").
		Edge("UnderstandVideo", "Sentiment").
		Edge("ExtractText", "Sentiment").
		Build()
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		res := g.Run(context.Background(), nil)
		require.Equal(t, StatusCompleted, res.Status)
		order := res.ExecutionOrder
		require.Len(t, order, 6)

		assert.Less(t, indexOf(order, "QueryBuild"), indexOf(order, "Collect"))
		for _, mid := range []string{"ExtractText", "UnderstandVideo", "DiscoverExpand"} {
			assert.Less(t, indexOf(order, "Collect"), indexOf(order, mid))
		}
		assert.Less(t, indexOf(order, "DiscoverExpand"), indexOf(order, "UnderstandVideo"))
		assert.Greater(t, indexOf(order, "Sentiment"), indexOf(order, "UnderstandVideo"))
		assert.Greater(t, indexOf(order, "Sentiment"), indexOf(order, "ExtractText"))
	}
}

func TestRunIndependentNodesRunConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := func(context.Context, Inputs) (any, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	}

	g, err := NewBuilder().
		Node("root", constNode(nil)).
		Node("left", slow).
		Node("right", slow).
		Edge("root", "left").
		Edge("root", "right").
		Build()
	require.NoError(t, err)

	res := g.Run(context.Background(), nil)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.GreaterOrEqual(t, peak.Load(), int32(2), "independent branches overlap")
}

func TestRunNodeFailureStopsDownstreamOnly(t *testing.T) {
	ran := map[string]bool{}
	g, err := NewBuilder().
		Node("root", constNode(nil)).
		Node("bad", func(context.Context, Inputs) (any, error) {
			ran["bad"] = true
			return nil, errors.New("boom")
		}).
		Node("after-bad", func(context.Context, Inputs) (any, error) {
			ran["after-bad"] = true
			return nil, nil
		}).
		Node("sibling", func(context.Context, Inputs) (any, error) {
			ran["sibling"] = true
			return nil, nil
		}).
		Edge("root", "bad").
		Edge("bad", "after-bad").
		Edge("root", "sibling").
		Build()
	require.NoError(t, err)

	res := g.Run(context.Background(), nil)
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, ran["bad"])
	assert.True(t, ran["sibling"], "siblings of a failed node still run")
	assert.False(t, ran["after-bad"], "downstream of a failed node never starts")
	assert.Equal(t, "boom", res.Results["bad"].Error)
	assert.NotContains(t, res.Results, "after-bad")
}

func TestOrderIsStable(t *testing.T) {
	g, err := NewBuilder().
		Node("a", constNode(nil)).
		Node("b", constNode(nil)).
		Node("c", constNode(nil)).
		Edge("a", "b").
		Edge("b", "c").
		Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, g.Order())
}
