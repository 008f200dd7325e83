package keys

import (
	"reflect"
	"testing"
)

func TestSpellingsPrecedence(t *testing.T) {
	url := MustLookup(SettingURL)
	want := []string{URL, JakartaJDBCURL, JavaxJDBCURL}
	if got := url.Spellings(); !reflect.DeepEqual(want, got) {
		t.Fatalf("unexpected spellings\nwant: %v\n got: %v", want, got)
	}
	if url.Preferred() != JakartaJDBCURL {
		t.Fatalf("expected successor as preferred, got %q", url.Preferred())
	}
	if !url.IsLegacy(JavaxJDBCURL) || url.IsLegacy(URL) {
		t.Fatalf("unexpected legacy detection")
	}

	ds := MustLookup(SettingDataSource)
	if got := ds.Spellings(); !reflect.DeepEqual(got, []string{DataSource}) {
		t.Fatalf("unexpected data source spellings: %v", got)
	}
	if ds.Preferred() != DataSource {
		t.Fatalf("expected native fallback for preferred, got %q", ds.Preferred())
	}
}

func TestForKeyResolvesEverySpelling(t *testing.T) {
	for _, setting := range All() {
		if setting.Prefix {
			continue
		}
		for _, key := range setting.Spellings() {
			got, ok := ForKey(key)
			if !ok || got.Name != setting.Name {
				t.Fatalf("key %q resolved to %q (ok=%v), want %q", key, got.Name, ok, setting.Name)
			}
		}
	}
}

func TestForKeyResolvesPrefixes(t *testing.T) {
	got, ok := ForKey(ClassCachePrefix + ".com.acme.Order")
	if !ok || got.Name != SettingEntityCache {
		t.Fatalf("expected entity cache setting, got %q (ok=%v)", got.Name, ok)
	}
	if _, ok := ForKey(ClassCachePrefix); ok {
		t.Fatalf("bare prefix should not match")
	}
	if _, ok := ForKey("unknown.key"); ok {
		t.Fatalf("unexpected match for unknown key")
	}
}

func TestTableHasUniqueNamesAndKeys(t *testing.T) {
	names := map[string]bool{}
	spellings := map[string]string{}
	for _, setting := range All() {
		if names[setting.Name] {
			t.Fatalf("duplicate setting name %q", setting.Name)
		}
		names[setting.Name] = true
		for _, key := range setting.Spellings() {
			if owner, ok := spellings[key]; ok {
				t.Fatalf("key %q owned by %q and %q", key, owner, setting.Name)
			}
			spellings[key] = setting.Name
		}
	}
}

func TestMustLookupPanicsOnUnknown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustLookup("NOPE")
}
