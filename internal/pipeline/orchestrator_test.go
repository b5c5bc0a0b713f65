package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.lorenzomilicia.dev/imgup/internal/document"
	"go.lorenzomilicia.dev/imgup/internal/frontmatter"
	"go.lorenzomilicia.dev/imgup/internal/settings"
	"go.lorenzomilicia.dev/imgup/internal/uploader"
)

func testSettings() settings.Settings {
	s := settings.Default()
	s.ServerURL = "https://cdn.x"
	s.UploadAPI = "/up"
	s.AltType = settings.AltFilename
	return s
}

func newTestOrchestrator(s settings.Settings, gw *MockGateway) (*Orchestrator, *MockNotifier, *MockObserver) {
	notifier := &MockNotifier{}
	observer := &MockObserver{}
	o := New(Options{
		Settings: s,
		Gateway:  gw,
		Notifier: notifier,
		Observer: observer.Observe,
	})
	return o, notifier, observer
}

func shot() File {
	return File{Name: "shot.png", Type: "image/png", Size: 2048, Data: make([]byte, 2048)}
}

func TestEnablePlugin(t *testing.T) {
	enabled := testSettings()

	noServer := testSettings()
	noServer.ServerURL = ""

	noAPI := testSettings()
	noAPI.UploadAPI = ""

	disabled := testSettings()
	disabled.EnableUpload = false

	tests := []struct {
		name     string
		settings settings.Settings
		fm       frontmatter.Values
		want     bool
	}{
		{"configured", enabled, nil, true},
		{"missing server url", noServer, nil, false},
		{"missing upload api", noAPI, nil, false},
		{"disabled", disabled, nil, false},
		{"front matter override", noServer, frontmatter.Values{UploadKey: true}, true},
		{"front matter override on disabled", disabled, frontmatter.Values{UploadKey: true}, true},
		{"front matter false falls back", enabled, frontmatter.Values{UploadKey: false}, true},
		{"front matter string is not an override", noServer, frontmatter.Values{UploadKey: "true"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnablePlugin(tt.settings, tt.fm); got != tt.want {
				t.Errorf("EnablePlugin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandlePaste_EndToEnd(t *testing.T) {
	gw := &MockGateway{
		Release: make(chan struct{}),
		Respond: func(job uploader.Job) uploader.Result {
			return uploader.Result{OK: true, URL: "https://cdn.x/up-response-url"}
		},
	}
	o, _, observer := newTestOrchestrator(testSettings(), gw)
	doc := document.NewBuffer("")

	handled := o.HandlePaste(context.Background(), doc, PasteEvent{Files: []File{shot()}})
	if !handled {
		t.Fatal("paste with an image should be handled")
	}

	// The placeholder is in place before the upload completes
	ids := observer.JobIDs()
	if len(ids) != 1 {
		t.Fatalf("expected one job, got %v", ids)
	}
	placeholder := PlaceholderText("en", ids[0])
	if got := doc.Value(); got != placeholder+"\n\n" {
		t.Fatalf("document = %q, want placeholder %q", got, placeholder)
	}

	close(gw.Release)
	o.Wait()

	if got, want := doc.Value(), "![shot.png](https://cdn.x/up-response-url)\n\n"; got != want {
		t.Errorf("document = %q, want %q", got, want)
	}

	jobs := gw.Uploads()
	if len(jobs) != 1 {
		t.Fatalf("expected one upload, got %d", len(jobs))
	}
	if jobs[0].Name != "shot.png" || jobs[0].Size != 2048 || jobs[0].MIMEType != "image/png" {
		t.Errorf("unexpected job %+v", jobs[0])
	}
	if !strings.HasPrefix(jobs[0].Payload, "data:image/png;base64,") {
		t.Errorf("payload is not a data URL: %.40s", jobs[0].Payload)
	}

	want := []State{StatePending, StateEncoding, StateCacheCheck, StateUploading, StatePatching, StateDone}
	got := observer.States(ids[0])
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", got, want)
	}
}

func TestHandlePaste_CacheHitSkipsUpload(t *testing.T) {
	gw := &MockGateway{}
	o, _, observer := newTestOrchestrator(testSettings(), gw)
	doc := document.NewBuffer("")

	o.HandlePaste(context.Background(), doc, PasteEvent{Files: []File{shot()}})
	o.Wait()
	o.HandlePaste(context.Background(), doc, PasteEvent{Files: []File{shot()}})
	o.Wait()

	if n := len(gw.Uploads()); n != 1 {
		t.Errorf("uploads = %d, want 1", n)
	}
	if got := strings.Count(doc.Value(), "![shot.png](https://cdn.x/shot.png)"); got != 2 {
		t.Errorf("expected two patched images, document = %q", doc.Value())
	}

	ids := observer.JobIDs()
	second := observer.States(ids[1])
	for _, s := range second {
		if s == StateUploading {
			t.Errorf("second job should not upload, states = %v", second)
		}
	}
	if o.cache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", o.cache.Len())
	}
}

func TestHandlePaste_UploadFailure(t *testing.T) {
	gw := &MockGateway{
		Respond: func(job uploader.Job) uploader.Result {
			return uploader.Result{Message: "quota exceeded"}
		},
	}
	o, notifier, observer := newTestOrchestrator(testSettings(), gw)
	doc := document.NewBuffer("before\n")

	o.HandlePaste(context.Background(), doc, PasteEvent{Files: []File{shot()}})
	o.Wait()

	if got, want := doc.Value(), "before\n"+FailureMarker("en")+"\n\n"; got != want {
		t.Errorf("document = %q, want %q", got, want)
	}
	notices := notifier.All()
	if len(notices) != 1 || notices[0] != "quota exceeded" {
		t.Errorf("notices = %v", notices)
	}
	ids := observer.JobIDs()
	states := observer.States(ids[0])
	if states[len(states)-1] != StateFailed {
		t.Errorf("last state = %v, want FAILED", states[len(states)-1])
	}
	if o.cache.Len() != 0 {
		t.Error("failed uploads must not be cached")
	}
}

func TestHandlePaste_EncodingFailure(t *testing.T) {
	gw := &MockGateway{}
	o, notifier, _ := newTestOrchestrator(testSettings(), gw)
	doc := document.NewBuffer("")

	empty := File{Name: "empty.png", Type: "image/png"}
	o.HandlePaste(context.Background(), doc, PasteEvent{Files: []File{empty}})
	o.Wait()

	if !strings.Contains(doc.Value(), FailureMarker("en")) {
		t.Errorf("document = %q, want failure marker", doc.Value())
	}
	if len(gw.Uploads()) != 0 {
		t.Error("nothing should be uploaded")
	}
	if len(notifier.All()) != 1 {
		t.Errorf("notices = %v", notifier.All())
	}
}

func TestHandlePaste_Classification(t *testing.T) {
	text := File{Name: "notes.txt", Type: "text/plain", Data: []byte("hi")}

	tests := []struct {
		name     string
		apply    bool
		event    PasteEvent
		want     bool
		wantJobs int
		eligible bool
	}{
		{"image only", true, PasteEvent{Files: []File{shot()}}, true, 1, true},
		{"no image files", true, PasteEvent{Files: []File{text}}, false, 0, true},
		{"text only", true, PasteEvent{Text: "hello"}, false, 0, true},
		{"image with text applied", true, PasteEvent{Files: []File{shot()}, Text: "hello"}, true, 1, true},
		{"image with text not applied", false, PasteEvent{Files: []File{shot()}, Text: "hello"}, false, 0, true},
		{"only image files are uploaded", true, PasteEvent{Files: []File{text, shot()}}, true, 1, true},
		{"not eligible", true, PasteEvent{Files: []File{shot()}}, false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			s.ApplyImageWithText = tt.apply
			if !tt.eligible {
				s.EnableUpload = false
			}
			gw := &MockGateway{}
			o, _, _ := newTestOrchestrator(s, gw)
			doc := document.NewBuffer("")

			got := o.HandlePaste(context.Background(), doc, tt.event)
			o.Wait()

			if got != tt.want {
				t.Errorf("HandlePaste() = %v, want %v", got, tt.want)
			}
			if n := len(gw.Uploads()); n != tt.wantJobs {
				t.Errorf("uploads = %d, want %d", n, tt.wantJobs)
			}
			if !tt.want && doc.Value() != "" {
				t.Errorf("unhandled paste changed the document: %q", doc.Value())
			}
		})
	}
}

func TestHandlePaste_FrontMatterOverride(t *testing.T) {
	s := settings.Default()
	o, _, _ := newTestOrchestrator(s, &MockGateway{})
	doc := document.NewBuffer("---\nupload-image: true\n---\n")

	if !o.HandlePaste(context.Background(), doc, PasteEvent{Files: []File{shot()}}) {
		t.Error("front matter override should enable the upload")
	}
	o.Wait()
}

func TestHandlePaste_NetworkImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("remote png"))
	}))
	defer srv.Close()

	s := testSettings()
	s.WorkOnNetwork = true
	s.BlockDomains = []string{"blocked.com"}

	gw := &MockGateway{
		Respond: func(job uploader.Job) uploader.Result {
			return uploader.Result{OK: true, URL: "https://cdn.x/net.png"}
		},
	}
	o, _, _ := newTestOrchestrator(s, gw)
	doc := document.NewBuffer("")

	text := "![a](" + srv.URL + "/a.png)\n![b](https://img.blocked.com/b.png)\n![c](https://cdn.x/c.png)"
	if !o.HandlePaste(context.Background(), doc, PasteEvent{Text: text}) {
		t.Fatal("paste with network images should be handled")
	}
	o.Wait()

	want := "![a](https://cdn.x/net.png)\n![b](https://img.blocked.com/b.png)\n![c](https://cdn.x/c.png)"
	if got := doc.Value(); got != want {
		t.Errorf("document = %q, want %q", got, want)
	}
	jobs := gw.Uploads()
	if len(jobs) != 1 {
		t.Fatalf("uploads = %d, want 1", len(jobs))
	}
	if jobs[0].MIMEType != "image/png" {
		t.Errorf("MIMEType = %q", jobs[0].MIMEType)
	}
}

func TestHandleDrop(t *testing.T) {
	text := File{Name: "notes.txt", Type: "text/plain", Data: []byte("hi")}

	tests := []struct {
		name     string
		event    DropEvent
		want     bool
		wantJobs int
	}{
		{"image", DropEvent{Files: []File{shot()}}, true, 1},
		{"insert local link", DropEvent{Files: []File{shot()}, InsertLocalLink: true}, false, 0},
		{"no images", DropEvent{Files: []File{text}}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &MockGateway{}
			o, _, _ := newTestOrchestrator(testSettings(), gw)
			doc := document.NewBuffer("")

			if got := o.HandleDrop(context.Background(), doc, tt.event); got != tt.want {
				t.Errorf("HandleDrop() = %v, want %v", got, tt.want)
			}
			o.Wait()
			if n := len(gw.Uploads()); n != tt.wantJobs {
				t.Errorf("uploads = %d, want %d", n, tt.wantJobs)
			}
		})
	}
}

func TestConcurrentJobsPatchTheirOwnPlaceholder(t *testing.T) {
	gw := &MockGateway{Release: make(chan struct{})}
	s := testSettings()
	s.MaxConcurrentUploads = 3
	o, _, _ := newTestOrchestrator(s, gw)
	doc := document.NewBuffer("")

	var files []File
	for i := 0; i < 10; i++ {
		files = append(files, File{
			Name: fmt.Sprintf("img%d.png", i),
			Type: "image/png",
			Data: []byte(fmt.Sprintf("image %d", i)),
		})
	}
	o.HandleDrop(context.Background(), doc, DropEvent{Files: files})

	if got := strings.Count(doc.Value(), "🕔Uploading file..."); got != 10 {
		t.Fatalf("placeholders = %d, want 10", got)
	}

	close(gw.Release)
	o.Wait()

	var want strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&want, "![img%d.png](https://cdn.x/img%d.png)\n\n", i, i)
	}
	if got := doc.Value(); got != want.String() {
		t.Errorf("document = %q, want %q", got, want.String())
	}
}

func TestClose(t *testing.T) {
	o, _, _ := newTestOrchestrator(testSettings(), &MockGateway{})
	doc := document.NewBuffer("")

	o.HandlePaste(context.Background(), doc, PasteEvent{Files: []File{shot()}})
	o.Close()

	if o.cache.Len() != 0 {
		t.Error("Close should clear the cache")
	}
	if !strings.Contains(doc.Value(), "https://cdn.x/shot.png") {
		t.Errorf("Close should wait for jobs, document = %q", doc.Value())
	}
	if len(o.patchers) != 0 {
		t.Error("no patcher should outlive its jobs")
	}
}

func TestPlaceholderText(t *testing.T) {
	if got, want := PlaceholderText("en", "ab12c"), "![🕔Uploading file...ab12c]()"; got != want {
		t.Errorf("PlaceholderText(en) = %q, want %q", got, want)
	}
	if got, want := PlaceholderText("zh", "ab12c"), "![🕔正在上传文件...ab12c]()"; got != want {
		t.Errorf("PlaceholderText(zh) = %q, want %q", got, want)
	}
	if got := PlaceholderText("fr", "x"); got != PlaceholderText("en", "x") {
		t.Errorf("unknown language should fall back to English, got %q", got)
	}
}

func TestUniqueIDAvoidsExistingPlaceholders(t *testing.T) {
	o, _, _ := newTestOrchestrator(testSettings(), &MockGateway{})

	var text strings.Builder
	for i := 0; i < 50; i++ {
		id := o.uniqueID(text.String())
		if len(id) != idLength {
			t.Fatalf("id %q has length %d", id, len(id))
		}
		token := PlaceholderText("en", id)
		if strings.Contains(text.String(), token) {
			t.Fatalf("id %q already present", id)
		}
		text.WriteString(token + "\n")
	}
}
