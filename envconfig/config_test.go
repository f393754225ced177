package envconfig

import (
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"t":     slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     -8,
		"-1":    slog.LevelWarn,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("XBAR_DEBUG", k)
			if i := LogLevel(); i != v {
				t.Errorf("%s: expected %d, got %d", k, v, i)
			}
		})
	}
}

func TestNumParallel(t *testing.T) {
	cases := map[string]uint{
		"":     1,
		"4":    4,
		"abc":  1,
		"-2":   1,
		" 8 ":  8,
		"'16'": 16,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("XBAR_NUM_PARALLEL", k)
			if i := NumParallel(); i != v {
				t.Errorf("%s: expected %d, got %d", k, v, i)
			}
		})
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"true":  true,
		"false": false,
		"1":     true,
		"0":     false,
		// unparsbare Werte gelten als gesetzt
		"random": true,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("XBAR_NOPROGRESS", k)
			if b := NoProgress(); b != v {
				t.Errorf("%s: expected %t, got %t", k, v, b)
			}
		})
	}
}

func TestPlaneEncoding(t *testing.T) {
	t.Setenv("XBAR_PLANE_ENCODING", "")
	if e := PlaneEncoding(); e != "f32" {
		t.Errorf("expected f32, got %s", e)
	}
	t.Setenv("XBAR_PLANE_ENCODING", "BF16")
	if e := PlaneEncoding(); e != "bf16" {
		t.Errorf("expected bf16, got %s", e)
	}
}

func TestValues(t *testing.T) {
	t.Setenv("XBAR_SEED", "42")
	t.Setenv("XBAR_NUM_PARALLEL", "")
	t.Setenv("XBAR_DEBUG", "")
	t.Setenv("XBAR_PLANE_ENCODING", "")
	t.Setenv("XBAR_NOPROGRESS", "")

	want := map[string]string{
		"XBAR_DEBUG":          "INFO",
		"XBAR_NUM_PARALLEL":   "1",
		"XBAR_SEED":           "42",
		"XBAR_PLANE_ENCODING": "f32",
		"XBAR_NOPROGRESS":     "false",
	}
	if diff := cmp.Diff(want, Values()); diff != "" {
		t.Errorf("Values() (-want +got):\n%s", diff)
	}
}
