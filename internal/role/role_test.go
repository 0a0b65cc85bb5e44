package role

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "free", want: Free},
		{in: "Premium", want: Premium},
		{in: " ADMIN ", want: Admin},
		{in: "administrador", want: Admin},
		{in: "cliente", want: Free},
		{in: "client", want: Free},
		{in: "root", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownRole, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseOrDefault(t *testing.T) {
	r, err := ParseOrDefault("", Free)
	require.NoError(t, err)
	assert.Equal(t, Free, r)

	r, err = ParseOrDefault("admin", Free)
	require.NoError(t, err)
	assert.Equal(t, Admin, r)

	_, err = ParseOrDefault("nope", Free)
	assert.Error(t, err)
}

func TestRole_Privilege(t *testing.T) {
	assert.True(t, Admin.IsPrivileged())
	assert.False(t, Premium.IsPrivileged())
	assert.False(t, Free.IsPrivileged())
	assert.False(t, Role(0).IsPrivileged())
}

func TestRole_JSON(t *testing.T) {
	type wrapper struct {
		Role Role `json:"role"`
	}

	b, err := json.Marshal(wrapper{Role: Premium})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"premium"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"role":"administrador"}`), &w))
	assert.Equal(t, Admin, w.Role)

	assert.Error(t, json.Unmarshal([]byte(`{"role":"boss"}`), &w))

	_, err = json.Marshal(wrapper{})
	assert.Error(t, err)
}
