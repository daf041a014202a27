package database

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-db/database/internal/binding"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   any
		kind Kind
		want any
	}{
		{nil, KindNull, nil},
		{true, KindBool, true},
		{42, KindInt, int64(42)},
		{int8(-3), KindInt, int64(-3)},
		{uint32(7), KindInt, int64(7)},
		{"abc", KindText, "abc"},
		{1.5, KindText, "1.5"},
		{float32(0.25), KindText, "0.25"},
		{Int(9), KindInt, int64(9)},
	}

	for _, tt := range tests {
		v, err := ValueOf(tt.in)
		require.NoError(t, err, "%#v", tt.in)
		assert.Equal(t, tt.kind, v.Kind(), "%#v", tt.in)
		assert.Equal(t, tt.want, v.Any(), "%#v", tt.in)
	}
}

func TestValueOfRejectsUnsupportedTypes(t *testing.T) {
	_, err := ValueOf(struct{}{})
	assert.ErrorIs(t, err, ErrUnsupportedBindType)

	_, err = ValueOf(uint64(math.MaxUint64))
	assert.ErrorIs(t, err, ErrUnsupportedBindType)

	_, err = ValueOf([]byte("raw"))
	assert.ErrorIs(t, err, ErrUnsupportedBindType)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "NULL", Null().String())
	assert.True(t, Value{}.IsNull())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "-12", Int(-12).String())
	assert.Equal(t, "x", Text("x").String())
}

func TestKeys(t *testing.T) {
	k := NameKey(":email")
	name, ok := k.Name()
	assert.True(t, ok)
	assert.Equal(t, "email", name)
	assert.Equal(t, NameKey("email"), k)

	idx, ok := IndexKey(2).Index()
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "2", IndexKey(2).String())
	assert.False(t, IndexKey(0).IsNamed())
}

func TestDataHelpers(t *testing.T) {
	d := Map(map[string]Value{"b": Int(2), "a": Text("x")})
	require.Len(t, d, 2)
	assert.Equal(t, NameKey("a"), d[0].Key)
	assert.Equal(t, NameKey("b"), d[1].Key)

	v, ok := d.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, Int(2), v)
	assert.False(t, d.HasIndexed())

	clone := d.Clone()
	clone[0].Value = Null()
	assert.Equal(t, Text("x"), d[0].Value)

	args := Args(Int(1), Text("y"))
	assert.True(t, args.HasIndexed())
	v, ok = args.Get(IndexKey(1))
	assert.True(t, ok)
	assert.Equal(t, Text("y"), v)

	assert.Nil(t, Data(nil).Clone())
}

func TestDataArgs(t *testing.T) {
	d := Data{Named(":id", Int(5)), Named("flag", Null())}
	assert.Equal(t, []binding.Arg{
		{Name: "id", Named: true, Value: int64(5)},
		{Name: "flag", Named: true, Value: nil},
	}, d.args())

	assert.Equal(t, []binding.Arg{{Index: 1, Value: "z"}}, Data{Indexed(1, Text("z"))}.args())
	assert.Nil(t, Data(nil).args())
}

func TestDataMarshalJSONKeepsOrder(t *testing.T) {
	d := Data{Named("z", Int(1)), Named("a", Bool(false)), Named("m", Null()), Named("t", Text("q\""))}
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":false,"m":null,"t":"q\""}`, string(out))

	out, err = json.Marshal(Args(Int(7)))
	require.NoError(t, err)
	assert.Equal(t, `{"0":7}`, string(out))
}
