package board

import (
	"context"
	"net"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rzbill/taskboard/internal/channel"
	"github.com/rzbill/taskboard/internal/channel/redischan"
	"github.com/rzbill/taskboard/internal/channel/relaychan"
	cfgpkg "github.com/rzbill/taskboard/internal/config"
	"github.com/rzbill/taskboard/internal/editsession"
	"github.com/rzbill/taskboard/internal/runtime"
	grpcserver "github.com/rzbill/taskboard/internal/server/grpc"
	channelsvc "github.com/rzbill/taskboard/internal/services/channels"
	"github.com/rzbill/taskboard/internal/task"
)

// twoParticipants runs the create/edit/save scenario between two boards on
// the given transports.
func twoParticipants(t *testing.T, ta, tb channel.Transport) {
	t.Helper()
	ctx := context.Background()
	clock := editsession.NewManualClock()
	a := newTestBoard(t, ta, "a", nil, clock)
	b := newTestBoard(t, tb, "b", nil, nil)
	for _, p := range []*Board{a, b} {
		if err := p.Join(ctx, "board"); err != nil {
			t.Fatalf("join %s: %v", p.Participant(), err)
		}
	}

	created, ok, err := a.Create(ctx, "Ship relay", "Wire the gRPC transport")
	if !ok || err != nil {
		t.Fatalf("create: %v", err)
	}
	eventually(t, "b sees create", func() bool {
		got, ok := b.Get(created.ID)
		return ok && got == created
	})

	if err := a.BeginEdit(ctx, created.ID); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = a.Change(ctx, created.ID, task.FieldTitle, "Ship relay v")
	_ = a.Change(ctx, created.ID, task.FieldTitle, "Ship relay v2")
	clock.Advance(editsession.DefaultDebounce)
	eventually(t, "b sees debounced edit", func() bool {
		got, _ := b.Get(created.ID)
		return got.Title == "Ship relay v2" && got.Editing
	})

	if err := a.Save(ctx, created.ID); err != nil {
		t.Fatalf("save: %v", err)
	}
	eventually(t, "b sees save", func() bool {
		got, _ := b.Get(created.ID)
		return got.Title == "Ship relay v2" && !got.Editing
	})
	if len(a.Snapshot()) != 1 || len(b.Snapshot()) != 1 {
		t.Fatalf("collections diverged: a=%v b=%v", a.Snapshot(), b.Snapshot())
	}
}

func TestTwoParticipantsOverRedis(t *testing.T) {
	s := miniredis.RunT(t)
	dial := func(sender string) channel.Transport {
		tr, err := redischan.Dial("redis://"+s.Addr(), sender, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		t.Cleanup(func() { _ = tr.Close() })
		return tr
	}
	twoParticipants(t, dial("a"), dial("b"))
}

func TestTwoParticipantsOverRelay(t *testing.T) {
	rt, err := runtime.Open(runtime.Options{Config: cfgpkg.Default().Relay})
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	lis := bufconn.Listen(1 << 20)
	srv := grpcserver.New(rt, channelsvc.New(rt, nil), nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		srv.Close()
		_ = rt.Close()
	})

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	dial := func(sender string) channel.Transport {
		tr, err := relaychan.Dial("passthrough:///bufnet", sender, relaychan.Options{
			DialOptions: []grpc.DialOption{grpc.WithContextDialer(dialer)},
		})
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		t.Cleanup(func() { _ = tr.Close() })
		return tr
	}
	twoParticipants(t, dial("a"), dial("b"))
}
