// Package componenttest provides test doubles for code built on the
// component registry.
//
// FakeScheduler arms timers that only fire when the test calls Tick or
// Fire. Recorder is a component that writes every hook call to a shared
// Journal, so tests can assert on cross-component ordering, and can be told
// to fail or panic in any hook.
//
//	func TestStartOrder(t *testing.T) {
//	    h := componenttest.T(t)
//	    h.Register("db", h.Recorder("db"))
//	    h.Register("api", h.Recorder("api"), component.DependsOn("db"))
//	    h.MustStart()
//	    // h.Journal().Entries() == ["db.start", "api.start"]
//	}
package componenttest
