package dispatch

import "testing"

// env is a minimal test double standing in for internal/server's Session.
type env struct {
	registered bool
	oper       bool
	replies    []string
}

func newRegistry() (*Registry[*env], *env) {
	r := NewRegistry[*env]()
	e := &env{}
	r.IsRegistered = func(e *env) bool { return e.registered }
	r.IsOper = func(e *env) bool { return e.oper }
	r.Reply = func(e *env, numeric string, params ...string) {
		e.replies = append(e.replies, numeric)
	}
	return r, e
}

func TestDispatchUnknownCommand(t *testing.T) {
	r, e := newRegistry()
	result := r.Dispatch(e, Invocation{Command: "BOGUS"})
	if result != Failure {
		t.Fatalf("expected Failure, got %v", result)
	}
	if len(e.replies) != 1 || e.replies[0] != ERR_UNKNOWNCOMMAND {
		t.Fatalf("expected ERR_UNKNOWNCOMMAND, got %+v", e.replies)
	}
}

func TestDispatchRegisteredOnlyBlocksUnregistered(t *testing.T) {
	r, e := newRegistry()
	r.Register(&Command[*env]{
		Name:  "JOIN",
		Flags: RegisteredOnly,
		Call:  func(*env, Invocation) Result { return Success },
	})
	result := r.Dispatch(e, Invocation{Command: "JOIN"})
	if result != Failure {
		t.Fatalf("expected Failure for unregistered caller, got %v", result)
	}
	if len(e.replies) != 1 || e.replies[0] != ERR_NOTREGISTERED {
		t.Fatalf("expected ERR_NOTREGISTERED, got %+v", e.replies)
	}
}

func TestDispatchOperOnlyBlocksNonOper(t *testing.T) {
	r, e := newRegistry()
	e.registered = true
	r.Register(&Command[*env]{
		Name:  "KILL",
		Flags: RegisteredOnly | OperOnly,
		Call:  func(*env, Invocation) Result { return Success },
	})
	result := r.Dispatch(e, Invocation{Command: "KILL", Params: []string{"a", "b"}})
	if result != Failure {
		t.Fatalf("expected Failure for non-oper, got %v", result)
	}
	if len(e.replies) != 1 || e.replies[0] != ERR_NOPRIVILEGES {
		t.Fatalf("expected ERR_NOPRIVILEGES, got %+v", e.replies)
	}
}

func TestDispatchNeedsMoreParams(t *testing.T) {
	r, e := newRegistry()
	e.registered = true
	r.Register(&Command[*env]{
		Name:      "KICK",
		MinParams: 2,
		Flags:     RegisteredOnly,
		Call:      func(*env, Invocation) Result { return Success },
	})
	result := r.Dispatch(e, Invocation{Command: "KICK", Params: []string{"#chan"}})
	if result != Failure {
		t.Fatalf("expected Failure for too few params, got %v", result)
	}
	if len(e.replies) != 1 || e.replies[0] != ERR_NEEDMOREPARAMS {
		t.Fatalf("expected ERR_NEEDMOREPARAMS, got %+v", e.replies)
	}
}

func TestDispatchPreHookVeto(t *testing.T) {
	r, e := newRegistry()
	e.registered = true
	called := false
	r.Register(&Command[*env]{
		Name:  "PRIVMSG",
		Flags: RegisteredOnly,
		Call: func(*env, Invocation) Result {
			called = true
			return Success
		},
	})
	r.AddPreHook(func(*env, Invocation) Result { return Veto })

	result := r.Dispatch(e, Invocation{Command: "PRIVMSG"})
	if result != Success {
		t.Fatalf("a vetoed pipeline should report Success (silent abort), got %v", result)
	}
	if called {
		t.Fatal("handler must not run once a pre-hook vetoes")
	}
}

func TestDispatchPostHookRunsAfterHandler(t *testing.T) {
	r, e := newRegistry()
	e.registered = true
	order := []string{}
	r.Register(&Command[*env]{
		Name:  "PING",
		Flags: RegisteredOnly,
		Call: func(*env, Invocation) Result {
			order = append(order, "handler")
			return Success
		},
	})
	r.AddPostHook(func(*env, Invocation) Result {
		order = append(order, "post")
		return Success
	})

	r.Dispatch(e, Invocation{Command: "PING"})
	if len(order) != 2 || order[0] != "handler" || order[1] != "post" {
		t.Fatalf("expected [handler post], got %+v", order)
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r, _ := newRegistry()
	cmd := &Command[*env]{Name: "NICK", Call: func(*env, Invocation) Result { return Success }}
	if err := r.Register(cmd); err != nil {
		t.Fatalf("expected first registration to succeed, got %v", err)
	}
	if err := r.Register(cmd); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestUnregisterThenDispatchUnknown(t *testing.T) {
	r, e := newRegistry()
	cmd := &Command[*env]{Name: "AWAY", Call: func(*env, Invocation) Result { return Success }}
	r.Register(cmd)
	r.Unregister("AWAY")
	result := r.Dispatch(e, Invocation{Command: "AWAY"})
	if result != Failure || e.replies[0] != ERR_UNKNOWNCOMMAND {
		t.Fatalf("expected unknown command after unregister, got result=%v replies=%+v", result, e.replies)
	}
}
