package modes

import "testing"

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := NewRegistry[int]()
	h := &Handler[int]{Rule: ParamNone}
	if err := r.Register(ScopeChannel, 'm', h); err != nil {
		t.Fatalf("expected first registration to succeed, got %v", err)
	}
	if err := r.Register(ScopeChannel, 'm', h); err == nil {
		t.Fatal("expected second registration of the same (scope, letter) to fail")
	}
}

func TestUnregisterThenLookup(t *testing.T) {
	r := NewRegistry[int]()
	h := &Handler[int]{Rule: ParamNone}
	r.Register(ScopeUser, 'i', h)
	r.Unregister(ScopeUser, 'i')
	if _, ok := r.Lookup(ScopeUser, 'i'); ok {
		t.Fatal("expected lookup to fail after Unregister")
	}
}

func TestParseChangesParamRules(t *testing.T) {
	r := NewRegistry[int]()
	r.Register(ScopeChannel, 'o', &Handler[int]{Rule: ParamAlways})
	r.Register(ScopeChannel, 'k', &Handler[int]{Rule: ParamOnSet})
	r.Register(ScopeChannel, 'm', &Handler[int]{Rule: ParamNone})

	applied, overflow := ParseChanges(r, ScopeChannel, []string{"+om-k", "alice", "secret"})
	if len(overflow) != 0 {
		t.Fatalf("expected no overflow, got %+v", overflow)
	}
	want := []Change{
		{Add: true, Letter: 'o', Param: "alice"},
		{Add: true, Letter: 'm'},
		{Add: false, Letter: 'k'},
	}
	if len(applied) != len(want) {
		t.Fatalf("expected %d changes, got %d: %+v", len(want), len(applied), applied)
	}
	for i, w := range want {
		if applied[i] != w {
			t.Errorf("change %d = %+v, want %+v", i, applied[i], w)
		}
	}
}

func TestParseChangesOnSetOnlyConsumesParamWhenAdding(t *testing.T) {
	r := NewRegistry[int]()
	r.Register(ScopeChannel, 'k', &Handler[int]{Rule: ParamOnSet})
	r.Register(ScopeChannel, 'l', &Handler[int]{Rule: ParamOnSet})

	// -k takes no parameter under ParamOnSet, so with no args supplied
	// the change carries an empty Param.
	applied, _ := ParseChanges(r, ScopeChannel, []string{"-k"})
	if len(applied) != 1 || applied[0].Param != "" {
		t.Fatalf("expected -k to carry no parameter, got %+v", applied)
	}
}

func TestParseChangesOverflow(t *testing.T) {
	r := NewRegistry[int]()
	r.Register(ScopeChannel, 'b', &Handler[int]{Rule: ParamList})

	letters := make([]byte, MaxChangesPerLine+5)
	args := make([]string, len(letters))
	for i := range letters {
		letters[i] = 'b'
		args[i] = "mask"
	}
	params := append([]string{"+" + string(letters)}, args...)

	applied, overflow := ParseChanges(r, ScopeChannel, params)
	if len(applied) != MaxChangesPerLine {
		t.Fatalf("expected %d applied changes, got %d", MaxChangesPerLine, len(applied))
	}
	if len(overflow) != 5 {
		t.Fatalf("expected 5 overflow changes, got %d", len(overflow))
	}
}

func TestParseChangesEmptyParams(t *testing.T) {
	r := NewRegistry[int]()
	applied, overflow := ParseChanges(r, ScopeChannel, nil)
	if applied != nil || overflow != nil {
		t.Fatalf("expected nil, nil for empty params, got %+v %+v", applied, overflow)
	}
}

func TestParseChangesUnknownLetterNoParam(t *testing.T) {
	r := NewRegistry[int]()
	applied, _ := ParseChanges(r, ScopeChannel, []string{"+z"})
	if len(applied) != 1 || applied[0].Param != "" {
		t.Fatalf("expected unknown letter to pass through with no param, got %+v", applied)
	}
}
