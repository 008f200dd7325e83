package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDecoderFromFixtures(t *testing.T) {
	fx := loadFixture(t, "hydrate_pool.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			decoder := NewDecoder[poolSettings](buildOptions(tc)...)

			ctx := Context{
				Fragment: tc.Fragment,
				Unit:     tc.Unit,
			}

			result, err := decoder.Decode(ctx, tc.Input)

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}

			if !reflect.DeepEqual(tc.Expect, result) {
				t.Fatalf("decoded fragment mismatch:\nwant: %#v\n got: %#v", tc.Expect, result)
			}
		})
	}
}

func TestDecodeNilPayload(t *testing.T) {
	_, err := NewDecoder[poolSettings]().Decode(Context{Fragment: "pool"}, nil)
	if err == nil || !strings.Contains(err.Error(), "payload is nil") {
		t.Fatalf("expected nil payload error, got %v", err)
	}
}

func TestDecodeDoesNotMutateInput(t *testing.T) {
	input := map[string]any{"pool_size": "7"}
	decoder := NewDecoder[poolSettings](WithPreHook[poolSettings](NumericStrings))
	if _, err := decoder.Decode(Context{Fragment: "pool"}, input); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if input["pool_size"] != "7" {
		t.Fatalf("expected input untouched, got %#v", input["pool_size"])
	}
}

func TestFragmentSelectsKnownKeys(t *testing.T) {
	settings := map[string]any{
		"a":    1,
		"b":    nil,
		"c":    func() {},
		"keep": "x",
	}
	got := Fragment(settings, "a", "b", "keep", "missing")
	want := map[string]any{"a": 1, "keep": "x"}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("unexpected fragment\nwant: %#v\n got: %#v", want, got)
	}
}

func buildOptions(tc fixtureCase) []DecoderOption[poolSettings] {
	options := []DecoderOption[poolSettings]{}

	for _, optName := range tc.Options {
		switch optName {
		case "disallow_unknown":
			options = append(options, WithDisallowUnknownFields[poolSettings]())
		}
	}

	for _, hookName := range tc.PreHooks {
		switch hookName {
		case "numeric_strings":
			options = append(options, WithPreHook[poolSettings](NumericStrings))
		}
	}

	for _, hookName := range tc.PostHooks {
		switch hookName {
		case "default_driver":
			options = append(options, WithPostHook[poolSettings](defaultDriverPostHook))
		case "non_negative":
			options = append(options, WithPostHook[poolSettings](nonNegativePostHook))
		}
	}

	return options
}

func defaultDriverPostHook(ctx Context, settings *poolSettings) error {
	if settings == nil {
		return errors.New("settings are nil")
	}
	if settings.Driver == "" {
		settings.Driver = fmt.Sprintf("%s-driver", ctx.Unit)
	}
	return nil
}

func nonNegativePostHook(_ Context, settings *poolSettings) error {
	if settings.PoolSize < 0 {
		return fmt.Errorf("pool_size must not be negative, got %d", settings.PoolSize)
	}
	return nil
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name      string         `json:"name"`
	Fragment  string         `json:"fragment"`
	Unit      string         `json:"unit"`
	Input     map[string]any `json:"input"`
	Expect    poolSettings   `json:"expect"`
	ExpectErr string         `json:"expectErr"`
	PreHooks  []string       `json:"preHooks"`
	PostHooks []string       `json:"postHooks"`
	Options   []string       `json:"options"`
}

type poolSettings struct {
	PoolSize    int    `json:"pool_size"`
	PoolMaxIdle int    `json:"pool_max_idle"`
	Driver      string `json:"driver"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read hydrate fixture %q: %v", name, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal hydrate fixture %q: %v", name, err)
	}
	return fx
}
