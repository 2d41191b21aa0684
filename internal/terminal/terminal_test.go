package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEnv struct {
	vars map[string]string
	tty  bool
}

func (e fakeEnv) LookupEnv(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

func (e fakeEnv) IsTerminal(int) bool { return e.tty }

func TestDetectWith(t *testing.T) {
	tests := []struct {
		name string
		env  fakeEnv
		opts Options
		want Capabilities
	}{
		{
			name: "tty with xterm",
			env:  fakeEnv{vars: map[string]string{"TERM": "xterm-256color"}, tty: true},
			want: Capabilities{Interactive: true, Color: true},
		},
		{
			name: "pipe",
			env:  fakeEnv{vars: map[string]string{"TERM": "xterm"}},
			want: Capabilities{},
		},
		{
			name: "CI disables interactive",
			env:  fakeEnv{vars: map[string]string{"TERM": "xterm", "GITHUB_ACTIONS": "true"}, tty: true},
			want: Capabilities{},
		},
		{
			name: "CI=false is ignored",
			env:  fakeEnv{vars: map[string]string{"TERM": "xterm", "CI": "false"}, tty: true},
			want: Capabilities{Interactive: true, Color: true},
		},
		{
			name: "NO_COLOR",
			env:  fakeEnv{vars: map[string]string{"TERM": "xterm", "NO_COLOR": ""}, tty: true},
			want: Capabilities{Interactive: true},
		},
		{
			name: "CLICOLOR_FORCE on a pipe",
			env:  fakeEnv{vars: map[string]string{"CLICOLOR_FORCE": "1"}},
			want: Capabilities{Color: true},
		},
		{
			name: "CLICOLOR=0",
			env:  fakeEnv{vars: map[string]string{"TERM": "screen", "CLICOLOR": "0"}, tty: true},
			want: Capabilities{Interactive: true},
		},
		{
			name: "dumb terminal",
			env:  fakeEnv{vars: map[string]string{"TERM": "dumb"}, tty: true},
			want: Capabilities{Interactive: true},
		},
		{
			name: "flags win",
			env:  fakeEnv{vars: map[string]string{"NO_COLOR": "1"}},
			opts: Options{ForceInteractive: true, ForceColor: true},
			want: Capabilities{Interactive: true, Color: true},
		},
		{
			name: "force non-interactive",
			env:  fakeEnv{vars: map[string]string{"TERM": "xterm"}, tty: true},
			opts: Options{ForceNonInteractive: true, DisableColor: true},
			want: Capabilities{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectWith(tt.env, 2, tt.opts))
		})
	}
}
