package record

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSize = 100

func sampleHyperparams() map[string]Param {
	return map[string]Param{
		"param1": IntParam(1),
		"param2": StringParam("p2"),
		"param3": ListParam(IntParam(1), IntParam(3), IntParam(3)),
		"param4": MapParam(map[string]Param{"a": IntParam(1), "b": IntParam(2)}),
		"param5": FloatParam(0.5),
		"param6": NullParam(),
		"param7": BoolParam(true),
		"param8": ListParam(),
		"param9": MapParam(map[string]Param{
			"nested": ListParam(FloatParam(1), MapParam(map[string]Param{"deep": StringParam("x")})),
		}),
	}
}

func sampleRecord(t *testing.T) *Record {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	r := New("test1", "This is a description", sampleHyperparams())
	r.RunID = "0190a7c0-0000-7000-8000-000000000001"
	for i := 0; i < testSize; i++ {
		r.Append(float64(i), map[string]float64{"log1": rng.Float64(), "log2": rng.Float64()})
	}
	return r
}

// TestRoundTrip checks every field survives Marshal/Unmarshal.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	r := sampleRecord(t)
	data, err := Marshal(r)
	require.NoError(t, err)

	loaded, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, r, loaded)
}

// TestRoundTripEmpty covers a record with no observations.
func TestRoundTripEmpty(t *testing.T) {
	t.Parallel()

	r := New("empty", "", nil)
	data, err := Marshal(r)
	require.NoError(t, err)
	loaded, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, r, loaded)
}

// TestRoundTripKeepsNumericIdentity ensures ints stay ints and floats stay
// floats, including non-finite values.
func TestRoundTripKeepsNumericIdentity(t *testing.T) {
	t.Parallel()

	r := New("numbers", "", map[string]Param{
		"int":   IntParam(1),
		"float": FloatParam(1),
		"big":   IntParam(math.MaxInt64),
		"nan":   FloatParam(math.NaN()),
		"inf":   FloatParam(math.Inf(-1)),
	})
	r.Append(0.5, map[string]float64{"loss": math.Inf(1)})
	r.Append(1.5, map[string]float64{"loss": math.NaN()})

	data, err := Marshal(r)
	require.NoError(t, err)
	loaded, err := Unmarshal(data)
	require.NoError(t, err)

	for k, want := range r.Hyperparams {
		got, ok := loaded.Hyperparams[k]
		require.True(t, ok, k)
		assert.True(t, want.Equal(got), "param %s: want %v got %v", k, want, got)
		assert.Equal(t, want.Kind(), got.Kind(), k)
	}
	loss := loaded.Series["loss"]
	require.Len(t, loss, 2)
	assert.True(t, math.IsInf(loss[0].Value, 1))
	assert.True(t, math.IsNaN(loss[1].Value))
	assert.Equal(t, []float64{0.5, 1.5}, loaded.Timesteps)
}

// TestAppendBackfill checks late metrics are null-filled for earlier steps.
func TestAppendBackfill(t *testing.T) {
	t.Parallel()

	r := New("backfill", "", nil)
	r.Append(0, map[string]float64{"a": 1})
	r.Append(1, map[string]float64{"a": 2, "b": 5})

	assert.Equal(t, []float64{0, 1}, r.Timesteps)
	assert.Equal(t, []Scalar{Num(1), Num(2)}, r.Series["a"])
	assert.Equal(t, []Scalar{{}, Num(5)}, r.Series["b"])
	assert.Equal(t, []string{"a", "b"}, r.Metrics)
	require.NoError(t, r.Validate())
}

// TestAppendMissingMetricIsNull checks a known metric absent from a call gets null.
func TestAppendMissingMetricIsNull(t *testing.T) {
	t.Parallel()

	r := New("missing", "", nil)
	r.Append(0, map[string]float64{"a": 1, "b": 2})
	r.Append(1, map[string]float64{"b": 3})
	r.Append(2, nil)

	assert.Equal(t, []Scalar{Num(1), {}, {}}, r.Series["a"])
	assert.Equal(t, []Scalar{Num(2), Num(3), {}}, r.Series["b"])
	assert.Len(t, r.Timesteps, 3)
}

// TestShapeInvariantUnderInterleaving introduces keys at random points and
// checks the invariant after every call.
func TestShapeInvariantUnderInterleaving(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	r := New("interleave", "", nil)
	for i := 0; i < 500; i++ {
		values := map[string]float64{}
		for j := 0; j < rng.Intn(4); j++ {
			values["m"+strconv.Itoa(rng.Intn(20))] = rng.Float64()
		}
		// Timesteps are neither unique nor monotonic.
		r.Append(float64(rng.Intn(50)), values)

		require.NoError(t, r.Validate())
		for name, series := range r.Series {
			require.Len(t, series, len(r.Timesteps), name)
		}
	}
}

// TestValidateDetectsDivergence makes sure corrupted shapes are reported.
func TestValidateDetectsDivergence(t *testing.T) {
	t.Parallel()

	r := New("broken", "", nil)
	r.Append(0, map[string]float64{"a": 1})
	r.Series["a"] = append(r.Series["a"], Num(2))
	require.ErrorIs(t, r.Validate(), ErrShapeInconsistency)

	_, err := Marshal(r)
	require.ErrorIs(t, err, ErrShapeInconsistency)

	r2 := New("orphan", "", nil)
	r2.Series["x"] = []Scalar{}
	require.ErrorIs(t, r2.Validate(), ErrShapeInconsistency)
}

// TestUnmarshalRejectsMalformed covers truncated, foreign and inconsistent input.
func TestUnmarshalRejectsMalformed(t *testing.T) {
	t.Parallel()

	good, err := Marshal(sampleRecord(t))
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":     nil,
		"truncated": good[:len(good)/2],
		"not json":  []byte("pickle"),
		"version":   []byte(`{"version":"other","name":"x","description":"","hyperparams":{},"timesteps":[],"series":[]}`),
		"shape": []byte(`{"version":"` + FormatVersion + `","name":"x","description":"","hyperparams":{},` +
			`"timesteps":[0,1],"series":[{"name":"a","values":[1]}]}`),
		"duplicate": []byte(`{"version":"` + FormatVersion + `","name":"x","description":"","hyperparams":{},` +
			`"timesteps":[0],"series":[{"name":"a","values":[1]},{"name":"a","values":[2]}]}`),
		"trailing": append(append([]byte(nil), good...), []byte(`{}`)...),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(data)
			require.ErrorIs(t, err, ErrMalformedRecord)
		})
	}

	_, err = Unmarshal(cases["shape"])
	require.ErrorIs(t, err, ErrShapeInconsistency)
}

// TestToTableShape checks T rows by M columns.
func TestToTableShape(t *testing.T) {
	t.Parallel()

	r := sampleRecord(t)
	r.Append(testSize, map[string]float64{"log3": 1})
	table := r.ToTable()

	rows, cols := table.Shape()
	assert.Equal(t, testSize+1, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, "test1", table.Run)
	assert.Equal(t, r.Timesteps, table.Index)

	log3, ok := table.Column("log3")
	require.True(t, ok)
	assert.False(t, log3[0].Valid)
	assert.Equal(t, Num(1), log3[testSize])

	_, ok = table.Column("nope")
	assert.False(t, ok)
}

// TestTailMeans checks the running window skips nulls.
func TestTailMeans(t *testing.T) {
	t.Parallel()

	r := New("tail", "", nil)
	r.Append(0, map[string]float64{"a": 1})
	r.Append(1, map[string]float64{"a": 3, "b": 4})
	r.Append(2, map[string]float64{"a": 5})

	means := r.TailMeans(2)
	require.Len(t, means, 2)
	assert.Equal(t, MetricMean{Name: "a", Value: 4, Valid: true}, means[0])
	assert.Equal(t, MetricMean{Name: "b", Value: 4, Valid: true}, means[1])

	means = r.TailMeans(1)
	assert.Equal(t, MetricMean{Name: "b"}, means[1])
}

// TestCloneIsIndependent ensures snapshots do not alias the source.
func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	r := sampleRecord(t)
	c := r.Clone()
	require.Equal(t, r, c)

	r.Append(1000, map[string]float64{"log1": 1})
	assert.Len(t, c.Timesteps, testSize)
	assert.Len(t, c.Series["log1"], testSize)
}

// TestParamFromAny converts decoder output into Params.
func TestParamFromAny(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"lr":      0.001,
		"epochs":  10,
		"name":    "resnet",
		"layers":  []any{64, 128, int64(256)},
		"opt":     map[string]any{"beta": []float64{0.9, 0.999}},
		"enabled": false,
		"none":    nil,
	}
	params, err := ParamsFromMap(in)
	require.NoError(t, err)

	assert.True(t, params["lr"].Equal(FloatParam(0.001)))
	assert.True(t, params["epochs"].Equal(IntParam(10)))
	assert.True(t, params["name"].Equal(StringParam("resnet")))
	assert.True(t, params["layers"].Equal(ListParam(IntParam(64), IntParam(128), IntParam(256))))
	assert.True(t, params["opt"].Equal(MapParam(map[string]Param{
		"beta": ListParam(FloatParam(0.9), FloatParam(0.999)),
	})))
	assert.True(t, params["enabled"].Equal(BoolParam(false)))
	assert.True(t, params["none"].IsNull())

	_, err = ParamFromAny(map[int]string{1: "x"})
	require.ErrorIs(t, err, ErrUnsupportedParam)
	_, err = ParamFromAny(struct{}{})
	require.ErrorIs(t, err, ErrUnsupportedParam)
}

// TestParamString renders nested values deterministically.
func TestParamString(t *testing.T) {
	t.Parallel()

	p := MapParam(map[string]Param{
		"b": ListParam(IntParam(1), FloatParam(2.5)),
		"a": StringParam("x"),
	})
	assert.Equal(t, "{a: x, b: [1, 2.5]}", p.String())
	assert.Equal(t, "null", NullParam().String())
}

// TestParamAny converts nested params back into plain values.
func TestParamAny(t *testing.T) {
	t.Parallel()

	p := MapParam(map[string]Param{
		"layers": ListParam(IntParam(64), FloatParam(0.5)),
		"name":   StringParam("x"),
		"none":   NullParam(),
	})
	assert.Equal(t, map[string]any{
		"layers": []any{int64(64), 0.5},
		"name":   "x",
		"none":   nil,
	}, p.Any())
	assert.Equal(t, true, BoolParam(true).Any())
}

// TestParamFromAnyUnsigned keeps fitting unsigned values as ints.
func TestParamFromAnyUnsigned(t *testing.T) {
	t.Parallel()

	p, err := ParamFromAny(uint(7))
	require.NoError(t, err)
	assert.True(t, p.Equal(IntParam(7)))

	p, err = ParamFromAny(uint64(math.MaxInt64))
	require.NoError(t, err)
	assert.True(t, p.Equal(IntParam(math.MaxInt64)))

	p, err = ParamFromAny(uint64(math.MaxUint64))
	require.NoError(t, err)
	assert.Equal(t, KindFloat, p.Kind())
	f, ok := p.Float()
	require.True(t, ok)
	assert.Equal(t, float64(math.MaxUint64), f)

	p, err = ParamFromAny(uintptr(3))
	require.NoError(t, err)
	assert.True(t, p.Equal(IntParam(3)))

	params, err := ParamsFromMap(map[string]any{"seed": uint64(1) << 63})
	require.NoError(t, err)
	assert.Equal(t, KindFloat, params["seed"].Kind())
}
