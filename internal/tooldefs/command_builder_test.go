package tooldefs

import (
	"reflect"
	"testing"
)

func nmapDef() Definition {
	return Definition{
		Name:        "nmap",
		Binary:      "nmap",
		DefaultArgs: []string{"-Pn"},
		Parameters: map[string]ParamDef{
			"target":    {Kind: KindFlagValue, Flag: "--target", Type: "string"},
			"verbose":   {Kind: KindBoolean, Flag: "-v", Type: "boolean"},
			"raw_args":  {Kind: KindRaw, Type: "string"},
			"out_file":  {Kind: KindPositional, Type: "string"},
			"stdin_list": {Kind: KindStdin, Type: "string"},
		},
	}
}

func TestBuildCommand_EmissionOrder(t *testing.T) {
	tests := []struct {
		name       string
		params     map[string]interface{}
		wantArgv   []string
		wantStdin  string
	}{
		{
			name:     "unknown key skipped",
			params:   map[string]interface{}{"bogus": "x"},
			wantArgv: []string{"nmap", "-Pn"},
		},
		{
			name:     "empty value skipped",
			params:   map[string]interface{}{"target": ""},
			wantArgv: []string{"nmap", "-Pn"},
		},
		{
			name:     "nil value skipped",
			params:   map[string]interface{}{"target": nil},
			wantArgv: []string{"nmap", "-Pn"},
		},
		{
			name:      "stdin reserved not emitted",
			params:    map[string]interface{}{"stdin_list": "a\nb\n"},
			wantArgv:  []string{"nmap", "-Pn"},
			wantStdin: "a\nb\n",
		},
		{
			name:     "raw passthrough bool true without a flag emits nothing",
			params:   map[string]interface{}{"raw_args": true},
			wantArgv: []string{"nmap", "-Pn"}, // raw_args has no Flag set in this def
		},
		{
			name:     "raw passthrough string emits value with no flag",
			params:   map[string]interface{}{"raw_args": "-sV -sC"},
			wantArgv: []string{"nmap", "-Pn", "-sV -sC"},
		},
		{
			name:     "positional deferred to end",
			params:   map[string]interface{}{"out_file": "scan.xml", "target": "10.0.0.1"},
			wantArgv: []string{"nmap", "-Pn", "--target", "10.0.0.1", "scan.xml"},
		},
		{
			name:     "boolean true emits flag",
			params:   map[string]interface{}{"verbose": true},
			wantArgv: []string{"nmap", "-Pn", "-v"},
		},
		{
			name:     "boolean false omits flag",
			params:   map[string]interface{}{"verbose": false},
			wantArgv: []string{"nmap", "-Pn"},
		},
		{
			name:     "default flag plus value",
			params:   map[string]interface{}{"target": "example.com"},
			wantArgv: []string{"nmap", "-Pn", "--target", "example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			argv, stdin, err := BuildCommand(nmapDef(), tt.params)
			if err != nil {
				t.Fatalf("BuildCommand() error = %v", err)
			}
			if !reflect.DeepEqual(argv, tt.wantArgv) {
				t.Errorf("argv = %v, want %v", argv, tt.wantArgv)
			}
			if stdin != tt.wantStdin {
				t.Errorf("stdin = %q, want %q", stdin, tt.wantStdin)
			}
		})
	}
}

func TestBuildCommand_Deterministic(t *testing.T) {
	def := nmapDef()
	params := map[string]interface{}{"target": "example.com", "verbose": true}
	argv1, _, _ := BuildCommand(def, params)
	argv2, _, _ := BuildCommand(def, params)
	if !reflect.DeepEqual(argv1, argv2) {
		t.Errorf("BuildCommand is not deterministic: %v != %v", argv1, argv2)
	}
}

func TestBuildBashCommand(t *testing.T) {
	got := BuildBashCommand("nmap -Pn example.com")
	want := []string{"sh", "-c", "nmap -Pn example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildBashCommand() = %v, want %v", got, want)
	}
}
