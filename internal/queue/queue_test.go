package queue

import "testing"

func TestPreflightOrderingAndPushFront(t *testing.T) {
	q := New()
	a := &Record{Kind: KindPublish, PacketID: 1}
	b := &Record{Kind: KindPublish, PacketID: 2}
	q.AppendPreflight(a)
	q.AppendPreflight(b)

	connect := &Record{Kind: KindConnect}
	q.PushFrontPreflight(connect)

	got := q.Preflight()
	if len(got) != 3 || got[0] != connect || got[1] != a || got[2] != b {
		t.Fatalf("preflight order wrong: %+v", got)
	}
}

func TestInsertPreflightAtMidAndTail(t *testing.T) {
	q := New()
	r0 := &Record{Kind: KindPublish, PacketID: 1}
	r1 := &Record{Kind: KindPublish, PacketID: 2}
	q.AppendPreflight(r0)
	q.AppendPreflight(r1)

	mid := &Record{Kind: KindPubrel, PacketID: 1}
	q.InsertPreflightAt(1, mid)

	got := q.Preflight()
	if len(got) != 3 || got[0] != r0 || got[1] != mid || got[2] != r1 {
		t.Fatalf("insert at mid wrong: %+v", got)
	}

	tail := &Record{Kind: KindPingreq}
	q.InsertPreflightAt(100, tail)
	got = q.Preflight()
	if got[len(got)-1] != tail {
		t.Fatalf("insert past end did not append at tail: %+v", got)
	}
}

func TestDropPreflightPrefix(t *testing.T) {
	q := New()
	q.AppendPreflight(&Record{PacketID: 1})
	q.AppendPreflight(&Record{PacketID: 2})
	q.AppendPreflight(&Record{PacketID: 3})

	q.DropPreflightPrefix(2)
	got := q.Preflight()
	if len(got) != 1 || got[0].PacketID != 3 {
		t.Fatalf("DropPreflightPrefix left %+v", got)
	}
}

func TestInflightHeadOfLineByKind(t *testing.T) {
	q := New()
	q.MoveToInflight(&Record{Kind: KindPublish, PacketID: 1})
	q.MoveToInflight(&Record{Kind: KindSubscribe, PacketID: 2})
	q.MoveToInflight(&Record{Kind: KindPublish, PacketID: 3})

	head, ok := q.InflightHead(KindPublish)
	if !ok || head.PacketID != 1 {
		t.Fatalf("InflightHead(KindPublish) = %+v, ok=%v, want packet id 1", head, ok)
	}

	q.RemoveInflight(1)
	head, ok = q.InflightHead(KindPublish)
	if !ok || head.PacketID != 3 {
		t.Fatalf("InflightHead(KindPublish) after removal = %+v, ok=%v, want packet id 3", head, ok)
	}
}

func TestInflightRecordsPreservesInsertionOrder(t *testing.T) {
	q := New()
	q.MoveToInflight(&Record{PacketID: 3})
	q.MoveToInflight(&Record{PacketID: 1})
	q.MoveToInflight(&Record{PacketID: 2})

	recs := q.InflightRecords()
	if len(recs) != 3 || recs[0].PacketID != 3 || recs[1].PacketID != 1 || recs[2].PacketID != 2 {
		t.Fatalf("InflightRecords order wrong: %+v", recs)
	}
	if q.InflightLen() != 3 {
		t.Fatalf("InflightLen() = %d, want 3", q.InflightLen())
	}
}

func TestRemoveInflightMissingIsNoop(t *testing.T) {
	q := New()
	q.MoveToInflight(&Record{PacketID: 1})
	q.RemoveInflight(99) // must not panic or corrupt state
	if q.InflightLen() != 1 {
		t.Fatalf("InflightLen() = %d, want 1", q.InflightLen())
	}
}

func TestReset(t *testing.T) {
	q := New()
	q.AppendPreflight(&Record{PacketID: 1})
	q.MoveToInflight(&Record{PacketID: 2})

	q.Reset()

	if q.PreflightLen() != 0 || q.InflightLen() != 0 {
		t.Fatalf("Reset left state: preflight=%d inflight=%d", q.PreflightLen(), q.InflightLen())
	}
	if _, ok := q.Inflight(2); ok {
		t.Fatal("Reset left stale in-flight record reachable")
	}
}
