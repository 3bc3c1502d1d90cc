package literal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type perm uint8

const (
	permRead  perm = 1
	permWrite perm = 2
	permExec  perm = 4
	permAll   perm = 7
)

func permConsts() []Const {
	return []Const{
		{Path: homePath, Name: "permRead", Value: permRead},
		{Path: homePath, Name: "permWrite", Value: permWrite},
		{Path: homePath, Name: "permExec", Value: permExec},
		{Path: homePath, Name: "permAll", Value: permAll},
	}
}

func weekdayConsts() []Const {
	var out []Const
	for d := time.Sunday; d <= time.Saturday; d++ {
		out = append(out, Const{Path: "time", Name: d.String(), Value: d})
	}
	return out
}

func TestEnumNames(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"exact home constant", permWrite, "permWrite"},
		{"combined constant wins", permAll, "permAll"},
		{"flag union", perm(3), "permRead | permWrite"},
		{"flag union out of order", perm(5), "permRead | permExec"},
		{"undeclared bits", perm(8), "perm(8)"},
		{"zero", perm(0), "perm(0)"},
		{"foreign constant", time.Tuesday, "time.Tuesday"},
		{"foreign out of range", time.Weekday(9), "time.Weekday(9)"},
		{"inside slice", []perm{permRead, 6}, "[]perm{permRead, permWrite | permExec}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder(homePath, nil)
			e.RegisterEnum(permConsts()...)
			e.RegisterEnum(weekdayConsts()...)

			got, err := e.Value(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEnumForeignImport(t *testing.T) {
	im := NewImports()
	im.Use("time", "stdtime")
	e := NewEncoder(homePath, im)
	e.RegisterEnum(weekdayConsts()...)

	got, err := e.Value(time.Friday)
	require.NoError(t, err)
	assert.Equal(t, "stdtime.Friday", got)
}

func TestRegisterEnumIgnoresNonBasic(t *testing.T) {
	e := NewEncoder(homePath, nil)
	e.RegisterEnum(Const{Path: homePath, Name: "origin", Value: point{}}, Const{Path: homePath, Name: "none"})
	assert.Empty(t, e.enums)
}

func TestEnumNonFlagTable(t *testing.T) {
	e := NewEncoder(homePath, nil)
	e.RegisterEnum(
		Const{Path: "time", Name: "Nanosecond", Value: time.Nanosecond},
		Const{Path: "time", Name: "Microsecond", Value: time.Microsecond},
		Const{Path: "time", Name: "Millisecond", Value: time.Millisecond},
		Const{Path: "time", Name: "Second", Value: time.Second},
	)

	got, err := e.Value(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "time.Second", got)

	got, err = e.Value(time.Second + time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "time.Duration(1001000000)", got)
}
