package quality

import "testing"

func TestDetectPaywall_DomainBlocklist(t *testing.T) {
	ok, penalty := DetectPaywall("A great read", "some content", "https://www.wsj.com/articles/x")
	if !ok || penalty != 1.0 {
		t.Errorf("expected paywall domain hit with penalty 1.0, got ok=%v penalty=%v", ok, penalty)
	}
}

func TestDetectPaywall_Keyword(t *testing.T) {
	ok, penalty := DetectPaywall("A great read", "this content is for subscribers only, please sign up", "https://example.com/a")
	if !ok || penalty != 0.8 {
		t.Errorf("expected keyword hit with penalty 0.8, got ok=%v penalty=%v", ok, penalty)
	}
}

func TestDetectPaywall_Clean(t *testing.T) {
	ok, penalty := DetectPaywall("A great read", "freely available content for everyone", "https://example.com/a")
	if ok || penalty != 0.0 {
		t.Errorf("expected no paywall, got ok=%v penalty=%v", ok, penalty)
	}
}

func TestDetectComparison_Keyword(t *testing.T) {
	ok, penalty := DetectComparison("iPhone vs Android: which is better", "a lengthy comparison")
	if !ok || penalty != 0.7 {
		t.Errorf("expected comparison hit, got ok=%v penalty=%v", ok, penalty)
	}
}

func TestDetectListicle_TopN(t *testing.T) {
	ok, penalty := DetectListicle("Top 10 Python Libraries for Data Science")
	if !ok || penalty != 0.5 {
		t.Errorf("expected listicle hit, got ok=%v penalty=%v", ok, penalty)
	}
}

func TestDetectListicle_RegularTitle(t *testing.T) {
	ok, _ := DetectListicle("Understanding Python Async/Await Internals")
	if ok {
		t.Error("expected no listicle hit for a regular title")
	}
}

func TestDetectContentLength_TooShort(t *testing.T) {
	ok, score := DetectContentLength("short stub")
	if ok || score != -0.15 {
		t.Errorf("expected too-short penalty, got ok=%v score=%v", ok, score)
	}
}

func TestDetectContentLength_Optimal(t *testing.T) {
	content := make([]byte, 800)
	for i := range content {
		content[i] = 'a'
	}
	ok, score := DetectContentLength(string(content))
	if !ok || score != 0.10 {
		t.Errorf("expected optimal bonus, got ok=%v score=%v", ok, score)
	}
}

func TestDetectContentLength_TooLong(t *testing.T) {
	content := make([]byte, 2000)
	for i := range content {
		content[i] = 'a'
	}
	ok, score := DetectContentLength(string(content))
	if !ok || score != -0.10 {
		t.Errorf("expected bloat penalty, got ok=%v score=%v", ok, score)
	}
}

func TestDetectContentQuality_SuitableWhenClean(t *testing.T) {
	det := DetectContentQuality("Understanding Python Async/Await", "A well written technical article about concurrency primitives and event loops, explaining how coroutines are scheduled, how the loop polls for ready file descriptors, and how cancellation propagates through awaiting tasks. It walks through a small worked example step by step and closes with notes on debugging stalled tasks in production services.", "https://example.com/a")
	if !det.Suitable {
		t.Errorf("expected suitable=true, got %+v", det)
	}
	if len(det.Detections) != 0 {
		t.Errorf("expected no detections, got %v", det.Detections)
	}
}

func TestDetectContentQuality_UnsuitableWhenPaywalled(t *testing.T) {
	det := DetectContentQuality("A great read", "x", "https://www.ft.com/content/x")
	if det.Suitable {
		t.Error("expected suitable=false for paywalled content")
	}
	found := false
	for _, d := range det.Detections {
		if d == DetectionPaywall {
			found = true
		}
	}
	if !found {
		t.Errorf("expected paywall in detections, got %v", det.Detections)
	}
}
