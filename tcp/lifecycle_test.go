package tcp

import (
	"net/netip"
	"testing"
)

func newLifecycleCore(t *testing.T) *Core {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PortLow = 50000
	cfg.PortHigh = 50010
	return NewCore(cfg, Collaborators{}, nil, nil)
}

func TestBindAssignsEphemeralPort(t *testing.T) {
	c := newLifecycleCore(t)
	pcb := c.NewPCB(0)
	if err := c.Bind(pcb, netip.Addr{}, 0); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if pcb.LocalPort == 0 {
		t.Fatal("Bind with port 0 should assign an ephemeral port")
	}
	if pcb.state != StateClosed {
		t.Errorf("state after bind = %v, want StateClosed", pcb.state)
	}
	if pcbListLen(c.boundList) != 1 {
		t.Error("pcb should be on the bound list after Bind")
	}
}

func TestBindExplicitPortConflict(t *testing.T) {
	c := newLifecycleCore(t)
	addr := netip.MustParseAddr("192.0.2.1")

	a := c.NewPCB(0)
	if err := c.Bind(a, addr, 9000); err != nil {
		t.Fatalf("first bind: %v", err)
	}

	b := c.NewPCB(0)
	err := c.Bind(b, addr, 9000)
	if err == nil {
		t.Fatal("second bind to the same address:port should fail")
	}
	serr, ok := err.(*StackError)
	if !ok || serr.Err != ErrUse {
		t.Errorf("Bind conflict error = %v, want ErrUse", err)
	}
}

func TestBindReuseAddrAllowsCoexistence(t *testing.T) {
	c := newLifecycleCore(t)
	addr := netip.MustParseAddr("192.0.2.1")

	a := c.NewPCB(0)
	a.SetReuseAddr(true)
	if err := c.Bind(a, addr, 9001); err != nil {
		t.Fatalf("first bind: %v", err)
	}

	b := c.NewPCB(0)
	b.SetReuseAddr(true)
	if err := c.Bind(b, addr, 9001); err != nil {
		t.Fatalf("second SO_REUSEADDR bind should succeed, got: %v", err)
	}
}

func TestBindWrongState(t *testing.T) {
	c := newLifecycleCore(t)
	pcb := c.NewPCB(0)
	pcb.state = StateEstablished
	if err := c.Bind(pcb, netip.Addr{}, 0); err == nil {
		t.Fatal("Bind on an established pcb should fail")
	}
}

func TestListenWithBacklog(t *testing.T) {
	c := newLifecycleCore(t)
	l := c.NewListener()
	l.LocalPort = 8080
	if err := c.ListenWithBacklog(l, 4); err != nil {
		t.Fatalf("ListenWithBacklog: %v", err)
	}
	if l.State() != StateListen {
		t.Errorf("listener state = %v, want StateListen", l.State())
	}
	if l.Backlog() != 4 {
		t.Errorf("backlog = %d, want 4", l.Backlog())
	}
}

func TestListenPortConflict(t *testing.T) {
	c := newLifecycleCore(t)
	a := c.NewListener()
	a.LocalPort = 8080
	if err := c.ListenWithBacklog(a, 1); err != nil {
		t.Fatalf("first listen: %v", err)
	}

	b := c.NewListener()
	b.LocalPort = 8080
	if err := c.ListenWithBacklog(b, 1); err == nil {
		t.Fatal("expected ErrUse listening on a port already occupied by another listener")
	}
}

func TestListenPortConflictReuseAddrBothSidesAllowed(t *testing.T) {
	c := newLifecycleCore(t)
	a := c.NewListener()
	a.LocalPort = 8080
	a.SetReuseAddr(true)
	if err := c.ListenWithBacklog(a, 1); err != nil {
		t.Fatalf("first listen: %v", err)
	}

	b := c.NewListener()
	b.LocalPort = 8080
	b.SetReuseAddr(true)
	if err := c.ListenWithBacklog(b, 1); err != nil {
		t.Fatalf("two SO_REUSEADDR listeners on the same port should coexist, got: %v", err)
	}
}

func TestConnectRequiresRoute(t *testing.T) {
	c := newLifecycleCore(t)
	pcb := c.NewPCB(0)
	remote := netip.MustParseAddr("203.0.113.1")
	err := c.Connect(pcb, remote, 443, nil)
	if err == nil {
		t.Fatal("Connect with no RouteLocalIP collaborator and a wildcard local addr should fail")
	}
	serr, ok := err.(*StackError)
	if !ok || serr.Err != ErrRte {
		t.Errorf("Connect error = %v, want ErrRte", err)
	}
}

func TestConnectSucceeds(t *testing.T) {
	var outputCalls int
	local := netip.MustParseAddr("192.0.2.5")
	c := NewCore(DefaultConfig(), Collaborators{
		RouteLocalIP: func(netip.Addr) (netip.Addr, bool) { return local, true },
		Output:       func(*PCB) { outputCalls++ },
	}, nil, nil)

	pcb := c.NewPCB(0)
	remote := netip.MustParseAddr("203.0.113.1")
	if err := c.Connect(pcb, remote, 443, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if pcb.state != StateSynSent {
		t.Errorf("state after Connect = %v, want StateSynSent", pcb.state)
	}
	if pcb.LocalAddr != local {
		t.Errorf("LocalAddr = %v, want %v", pcb.LocalAddr, local)
	}
	if outputCalls != 1 {
		t.Errorf("Output called %d times, want 1", outputCalls)
	}
	if pcbListLen(c.activeList) != 1 {
		t.Error("pcb should be on the active list after Connect")
	}
}

func TestConnectRollsBackOnEnqueueSynFailure(t *testing.T) {
	local := netip.MustParseAddr("192.0.2.5")
	enqueueErr := opErr("enqueue", ErrBuf)
	var outputCalls int
	c := NewCore(DefaultConfig(), Collaborators{
		RouteLocalIP: func(netip.Addr) (netip.Addr, bool) { return local, true },
		Output:       func(*PCB) { outputCalls++ },
		EnqueueSyn:   func(*PCB) error { return enqueueErr },
	}, nil, nil)

	pcb := c.NewPCB(0)
	remote := netip.MustParseAddr("203.0.113.1")
	err := c.Connect(pcb, remote, 443, nil)
	if err == nil {
		t.Fatal("Connect should fail when EnqueueSyn fails")
	}
	if pcb.state != StateClosed {
		t.Errorf("state after failed Connect = %v, want StateClosed", pcb.state)
	}
	if pcb.LocalAddr != (netip.Addr{}) || pcb.RemoteAddr != (netip.Addr{}) {
		t.Error("Connect must roll back the 4-tuple on EnqueueSyn failure")
	}
	if outputCalls != 0 {
		t.Error("Output must not be called when EnqueueSyn fails")
	}
	if pcbListLen(c.activeList) != 0 {
		t.Error("pcb must not be moved onto the active list when EnqueueSyn fails")
	}
}

func TestCloseEstablishedSendsFinAndMovesToFinWait1(t *testing.T) {
	var finSent bool
	c := NewCore(DefaultConfig(), Collaborators{
		SendFin: func(*PCB) error { finSent = true; return nil },
	}, nil, nil)
	pcb := c.NewPCB(0)
	pcb.LocalPort = 1234
	pcb.state = StateEstablished
	pcb.rcvWnd = TCPWndMax // fully open: no unread data, so Close must send a FIN, not RST.
	c.regActive(pcb)

	if err := c.Close(pcb); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !finSent {
		t.Error("Close on ESTABLISHED should send a FIN")
	}
	if pcb.state != StateFinWait1 {
		t.Errorf("state after Close = %v, want StateFinWait1", pcb.state)
	}
	if pcb.HasUserReference() {
		t.Error("Close should set TF_NOUSER")
	}
}

func TestCloseWaitMovesToLastAck(t *testing.T) {
	c := NewCore(DefaultConfig(), Collaborators{
		SendFin: func(*PCB) error { return nil },
	}, nil, nil)
	pcb := c.NewPCB(0)
	pcb.LocalPort = 1234
	pcb.state = StateCloseWait
	pcb.rcvWnd = TCPWndMax
	c.regActive(pcb)

	if err := c.Close(pcb); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if pcb.state != StateLastAck {
		t.Errorf("state after Close from CLOSE_WAIT = %v, want StateLastAck", pcb.state)
	}
}

func TestCloseEstablishedWithUnreadDataSendsRst(t *testing.T) {
	var rstSent bool
	c := NewCore(DefaultConfig(), Collaborators{
		SendFin: func(*PCB) error { t.Fatal("unread data should take the RST path, not FIN"); return nil },
		Rst:     func(snd, rcv Value, la, ra netip.Addr, lp, rp uint16) { rstSent = true },
	}, nil, nil)
	pcb := c.NewPCB(0)
	pcb.LocalPort = 1234
	pcb.state = StateEstablished
	pcb.rcvWnd = TCPWndMax - 1 // window shrunk below fully-open: unread data outstanding.
	c.regActive(pcb)

	if err := c.Close(pcb); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !rstSent {
		t.Error("Close on ESTABLISHED with unread data should send a RST")
	}
	if pcbListLen(c.activeList) != 0 {
		t.Error("pcb should no longer be on the active list")
	}
}

func TestShutTxDoesNotSetNoUser(t *testing.T) {
	c := NewCore(DefaultConfig(), Collaborators{
		SendFin: func(*PCB) error { return nil },
	}, nil, nil)
	pcb := c.NewPCB(0)
	pcb.LocalPort = 1234
	pcb.state = StateEstablished
	c.regActive(pcb)

	if err := c.ShutTx(pcb); err != nil {
		t.Fatalf("ShutTx: %v", err)
	}
	if pcb.state != StateFinWait1 {
		t.Errorf("state after ShutTx = %v, want StateFinWait1", pcb.state)
	}
	if !pcb.HasUserReference() {
		t.Error("ShutTx must not set TF_NOUSER: only TX was shut down")
	}

	for i := 0; i < int(DefaultConfig().FinWaitTimeout/DefaultConfig().SlowInterval)+5; i++ {
		c.SlowTmr()
	}
	if pcb.state != StateFinWait1 {
		t.Errorf("a pcb that only shut down TX must not be timed out of FIN_WAIT_1/2 by tickFinWait2, state = %v", pcb.state)
	}
}

func TestCloseSynSentFreesImmediately(t *testing.T) {
	var freed bool
	c := NewCore(DefaultConfig(), Collaborators{
		FreePCB: func(*PCB) { freed = true },
	}, nil, nil)
	pcb := c.NewPCB(0)
	pcb.LocalPort = 1234
	pcb.state = StateSynSent
	c.regActive(pcb)

	if err := c.Close(pcb); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !freed {
		t.Error("Close on SYN_SENT should free the pcb immediately, no FIN ever having been meaningful")
	}
	if pcbListLen(c.activeList) != 0 {
		t.Error("pcb should be off the active list")
	}
}

func TestCloseTwiceAlwaysDisposesOfPcb(t *testing.T) {
	var freed bool
	c := NewCore(DefaultConfig(), Collaborators{
		SendFin: func(*PCB) error { return nil },
		FreePCB: func(*PCB) { freed = true },
	}, nil, nil)
	pcb := c.NewPCB(0)
	pcb.LocalPort = 1234
	pcb.state = StateEstablished
	pcb.rcvWnd = TCPWndMax
	c.regActive(pcb)

	if err := c.Close(pcb); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if pcb.state != StateFinWait1 {
		t.Fatalf("state after first Close = %v, want StateFinWait1", pcb.state)
	}

	// Second Close hits closeShutdown's default case (a close already in
	// flight) and must fall back to an abortive pcbFree rather than leave
	// the pcb dangling forever.
	if err := c.Close(pcb); err == nil {
		t.Error("a second Close on a pcb already in FIN_WAIT_1 should still report the underlying error")
	}
	if !freed {
		t.Error("Close should fall back to pcbFree when closeShutdown can't complete normally")
	}
	if pcbListLen(c.activeList) != 0 {
		t.Error("pcb should have been forcibly removed from the active list")
	}
}

func TestAbortReportsErrOnceAndFrees(t *testing.T) {
	var reports int
	var rstSent bool
	c := NewCore(DefaultConfig(), Collaborators{
		Rst: func(snd, rcv Value, la, ra netip.Addr, lp, rp uint16) { rstSent = true },
	}, nil, nil)
	pcb := c.NewPCB(0)
	pcb.LocalPort = 1234
	pcb.state = StateEstablished
	pcb.errf = func(arg any, err error) { reports++ }
	c.regActive(pcb)

	c.Abort(pcb)
	if reports != 1 {
		t.Errorf("errf called %d times, want 1", reports)
	}
	if !rstSent {
		t.Error("Abort on an established connection should send a RST")
	}
	if c.stats.Aborts != 1 {
		t.Errorf("Aborts = %d, want 1", c.stats.Aborts)
	}
}

func TestCloseListenClearsBackReferences(t *testing.T) {
	c := newLifecycleCore(t)
	l := c.NewListener()
	l.LocalPort = 80
	if err := c.ListenWithBacklog(l, 4); err != nil {
		t.Fatalf("ListenWithBacklog: %v", err)
	}

	child := c.NewPCB(0)
	child.LocalPort = 80
	child.state = StateSynRcvd
	if err := c.AcceptInto(l, child); err != nil {
		t.Fatalf("AcceptInto: %v", err)
	}
	if child.listenerID == 0 {
		t.Fatal("AcceptInto should have set listenerID")
	}

	if err := c.CloseListen(l); err != nil {
		t.Fatalf("CloseListen: %v", err)
	}
	if child.listenerID != 0 {
		t.Error("CloseListen should clear every child's back-reference")
	}
	if l.State() != StateListenClosed {
		t.Errorf("listener state after CloseListen = %v, want StateListenClosed", l.State())
	}
}

func TestBacklogLimitsAccept(t *testing.T) {
	c := newLifecycleCore(t)
	l := c.NewListener()
	l.LocalPort = 80
	if err := c.ListenWithBacklog(l, 1); err != nil {
		t.Fatalf("ListenWithBacklog: %v", err)
	}

	first := c.NewPCB(0)
	first.LocalPort = 80
	first.state = StateSynRcvd
	if err := c.AcceptInto(l, first); err != nil {
		t.Fatalf("first AcceptInto: %v", err)
	}

	second := c.NewPCB(0)
	second.LocalPort = 80
	second.state = StateSynRcvd
	if err := c.AcceptInto(l, second); err == nil {
		t.Fatal("AcceptInto should fail once the backlog is full")
	}
}

func TestAcceptIntoInvokesAcceptCallback(t *testing.T) {
	c := newLifecycleCore(t)
	l := c.NewListener()
	l.LocalPort = 80
	if err := c.ListenWithBacklog(l, 4); err != nil {
		t.Fatalf("ListenWithBacklog: %v", err)
	}
	type call struct {
		arg any
		pcb *PCB
	}
	var got *call
	l.SetArg("listener-arg")
	l.SetAccept(func(arg any, pcb *PCB) { got = &call{arg, pcb} })

	child := c.NewPCB(0)
	child.LocalPort = 80
	child.state = StateSynRcvd
	if err := c.AcceptInto(l, child); err != nil {
		t.Fatalf("AcceptInto: %v", err)
	}
	if got == nil {
		t.Fatal("AcceptInto should have invoked the accept callback")
	}
	if got.arg != "listener-arg" || got.pcb != child {
		t.Errorf("accept callback called with (%v, %p), want (listener-arg, %p)", got.arg, got.pcb, child)
	}
}
