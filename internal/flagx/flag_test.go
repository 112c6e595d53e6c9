package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-c", "conf.json", "-a", ":8000"},
			allowed: []string{"-c"},
			want:    []string{"-c", "conf.json"},
		},
		{
			name:    "equals form",
			args:    []string{"-config=alt.json", "-a", ":8000"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config=alt.json"},
		},
		{
			name:    "unknown flags and positionals dropped",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "trailing flag without value",
			args:    []string{"-c"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "next flag is not a value",
			args:    []string{"-s", "-d", "postgres://db"},
			allowed: []string{"-s", "-d"},
			want:    []string{"-s", "-d", "postgres://db"},
		},
		{
			name:    "value with leading dashes kept in equals form",
			args:    []string{"-s=--weird"},
			allowed: []string{"-s"},
			want:    []string{"-s=--weird"},
		},
		{
			name:    "repeated flag keeps order",
			args:    []string{"-c", "one.json", "-c", "two.json"},
			allowed: []string{"-c"},
			want:    []string{"-c", "one.json", "-c", "two.json"},
		},
		{
			name:    "server flag set",
			args:    []string{"-a", ":8000", "-g", ":50051", "-l", "debug", "-z", "nope"},
			allowed: []string{"-a", "-g", "-l"},
			want:    []string{"-a", ":8000", "-g", ":50051", "-l", "debug"},
		},
		{
			name:    "empty",
			args:    []string{},
			allowed: []string{"-c"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "/etc/keyauth.json", ConfigPath([]string{"-c", "/etc/keyauth.json"}))
	assert.Equal(t, "/etc/long.json", ConfigPath([]string{"-config", "/etc/long.json"}))
	assert.Equal(t, "b.json", ConfigPath([]string{"-c", "a.json", "-config=b.json"}))
	assert.Empty(t, ConfigPath([]string{"-a", ":8000"}))
}

func TestJsonConfigFlags_ReadsProcessArgs(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	os.Args = []string{"keyauth-server", "-a", ":9000", "-c", "/tmp/cfg.json"}
	assert.Equal(t, "/tmp/cfg.json", JsonConfigFlags())

	os.Args = []string{"keyauth-server"}
	assert.Empty(t, JsonConfigFlags())
}
