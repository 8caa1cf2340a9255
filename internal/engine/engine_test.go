package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/normalize"
	"github.com/joseph-ayodele/notetasks/internal/ocr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackend struct {
	kind constants.BackendKind
	out  ocr.RawOutput
	err  error
}

func (f *fakeBackend) Kind() constants.BackendKind { return f.kind }

func (f *fakeBackend) Extract(context.Context, entity.Image) (ocr.RawOutput, error) {
	return f.out, f.err
}

func okCandidate(kind constants.BackendKind, calls *atomic.Int32, out ocr.RawOutput) Candidate {
	return Candidate{Kind: kind, New: func(context.Context) (ocr.Backend, error) {
		calls.Add(1)
		return &fakeBackend{kind: kind, out: out}, nil
	}}
}

func failingCandidate(kind constants.BackendKind, calls *atomic.Int32) Candidate {
	return Candidate{Kind: kind, New: func(context.Context) (ocr.Backend, error) {
		calls.Add(1)
		return nil, errors.Join(common.ErrBackendUnavailable, errors.New("weights missing"))
	}}
}

func TestSelector_FallbackOrder(t *testing.T) {
	var structured, region, words atomic.Int32
	s := NewSelector(discardLogger(), []Candidate{
		failingCandidate(constants.BackendStructured, &structured),
		{Kind: constants.BackendRegion, New: func(context.Context) (ocr.Backend, error) {
			region.Add(1)
			panic("cuda device lost")
		}},
		okCandidate(constants.BackendWordCluster, &words, ocr.WordOutput{}),
	})

	active, err := s.Initialize(context.Background(), constants.BackendAuto)
	require.NoError(t, err)
	assert.Equal(t, constants.BackendWordCluster, active.Kind())
	assert.True(t, active.RealBackendAvailable())
	assert.EqualValues(t, 1, structured.Load())
	assert.EqualValues(t, 1, region.Load())
	assert.EqualValues(t, 1, words.Load())
}

func TestSelector_StopsAtFirstAvailable(t *testing.T) {
	var structured, region atomic.Int32
	s := NewSelector(discardLogger(), []Candidate{
		okCandidate(constants.BackendStructured, &structured, ocr.StructuredOutput{}),
		okCandidate(constants.BackendRegion, &region, ocr.RegionOutput{}),
	})

	active, err := s.Initialize(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, constants.BackendStructured, active.Kind())
	assert.EqualValues(t, 0, region.Load())
}

func TestSelector_AllFailAdoptsMock(t *testing.T) {
	var a, b atomic.Int32
	s := NewSelector(discardLogger(), []Candidate{
		failingCandidate(constants.BackendStructured, &a),
		failingCandidate(constants.BackendRegion, &b),
	})

	active, err := s.Initialize(context.Background(), constants.BackendAuto)
	require.NoError(t, err)
	assert.Equal(t, constants.BackendMock, active.Kind())
	assert.False(t, active.RealBackendAvailable())

	res, err := active.Extract(context.Background(), entity.Image{Width: 800, Height: 600})
	require.NoError(t, err)
	assert.Len(t, res.Tasks, 3)
	assert.Equal(t, constants.BackendMock, res.Backend)
}

func TestSelector_ForcedBackend(t *testing.T) {
	t.Run("failure is fatal and does not fall back", func(t *testing.T) {
		var structured, region atomic.Int32
		s := NewSelector(discardLogger(), []Candidate{
			failingCandidate(constants.BackendStructured, &structured),
			okCandidate(constants.BackendRegion, &region, ocr.RegionOutput{}),
		})
		_, err := s.Initialize(context.Background(), constants.BackendStructured)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrBackendUnavailable)
		assert.EqualValues(t, 0, region.Load())
	})

	t.Run("unknown kind", func(t *testing.T) {
		s := NewSelector(discardLogger(), nil)
		_, err := s.Initialize(context.Background(), constants.BackendRegion)
		assert.ErrorIs(t, err, common.ErrNoBackend)
	})

	t.Run("mock", func(t *testing.T) {
		var calls atomic.Int32
		s := NewSelector(discardLogger(), []Candidate{okCandidate(constants.BackendStructured, &calls, nil)})
		active, err := s.Initialize(context.Background(), constants.BackendMock)
		require.NoError(t, err)
		assert.Equal(t, constants.BackendMock, active.Kind())
		assert.False(t, active.RealBackendAvailable())
		assert.EqualValues(t, 0, calls.Load())
	})

	t.Run("success", func(t *testing.T) {
		var calls atomic.Int32
		s := NewSelector(discardLogger(), []Candidate{okCandidate(constants.BackendRegion, &calls, ocr.RegionOutput{})})
		active, err := s.Initialize(context.Background(), constants.BackendRegion)
		require.NoError(t, err)
		assert.Equal(t, constants.BackendRegion, active.Kind())
		assert.True(t, active.RealBackendAvailable())
	})
}

func TestActive_DispatchesToMatchingNormalizer(t *testing.T) {
	cases := []struct {
		name  string
		kind  constants.BackendKind
		out   ocr.RawOutput
		names []string
	}{
		{
			name:  "structured",
			kind:  constants.BackendStructured,
			out:   ocr.StructuredOutput{Text: `[{"task_name":"Ship it"},{"task_name":"Test it"}]`},
			names: []string{"Ship it", "Test it"},
		},
		{
			name: "region",
			kind: constants.BackendRegion,
			out: ocr.RegionOutput{Regions: []normalize.Region{
				{Quad: [4]normalize.Point{{X: 0, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 30}, {X: 0, Y: 30}}, Text: "- Water plants", Confidence: 0.9},
			}},
			names: []string{"Water plants"},
		},
		{
			name: "word clusters",
			kind: constants.BackendWordCluster,
			out: ocr.WordOutput{Words: []normalize.Word{
				{Text: "1.", Confidence: 90, Top: 5},
				{Text: "Pay", Confidence: 90, Top: 5},
				{Text: "rent", Confidence: 90, Top: 6},
			}},
			names: []string{"Pay rent"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			s := NewSelector(discardLogger(), []Candidate{okCandidate(tc.kind, &calls, tc.out)})
			active, err := s.Initialize(context.Background(), tc.kind)
			require.NoError(t, err)

			res, err := active.Extract(context.Background(), entity.Image{Width: 640, Height: 480})
			require.NoError(t, err)
			assert.Equal(t, tc.kind, res.Backend)
			assert.Equal(t, 640, res.Width)
			assert.Equal(t, 480, res.Height)

			got := make([]string, len(res.Tasks))
			for i, task := range res.Tasks {
				got[i] = task.Name
				assert.Equal(t, i, task.PositionIndex)
			}
			assert.Equal(t, tc.names, got)
		})
	}
}

func TestActive_ExtractError(t *testing.T) {
	s := NewSelector(discardLogger(), []Candidate{{Kind: constants.BackendRegion, New: func(context.Context) (ocr.Backend, error) {
		return &fakeBackend{kind: constants.BackendRegion, err: errors.New("detector crashed")}, nil
	}}})
	active, err := s.Initialize(context.Background(), constants.BackendAuto)
	require.NoError(t, err)

	_, err = active.Extract(context.Background(), entity.Image{})
	assert.ErrorContains(t, err, "detector crashed")
}

func TestEngine_InitializesExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	s := NewSelector(discardLogger(), []Candidate{okCandidate(constants.BackendStructured, &calls, ocr.StructuredOutput{Text: "[]"})})
	e := New(s, constants.BackendAuto, discardLogger())
	assert.False(t, e.Ready())

	var wg sync.WaitGroup
	actives := make([]*Active, 16)
	for i := range actives {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := e.Active(context.Background())
			assert.NoError(t, err)
			actives[i] = a
		}(i)
	}
	wg.Wait()

	_, err := e.Extract(context.Background(), entity.Image{})
	require.NoError(t, err)

	assert.EqualValues(t, 1, calls.Load())
	for _, a := range actives {
		assert.Same(t, actives[0], a)
	}
	assert.True(t, e.Ready())
}

func TestEngine_RemembersForcedFailure(t *testing.T) {
	var calls atomic.Int32
	s := NewSelector(discardLogger(), []Candidate{failingCandidate(constants.BackendWordCluster, &calls)})
	e := New(s, constants.BackendWordCluster, discardLogger())

	_, err := e.Extract(context.Background(), entity.Image{})
	require.Error(t, err)
	_, err = e.Active(context.Background())
	require.Error(t, err)

	assert.EqualValues(t, 1, calls.Load())
	assert.False(t, e.Ready())
}
