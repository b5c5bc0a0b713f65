// Package pipeline drives image uploads from trigger to document patch.
package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.lorenzomilicia.dev/imgup/internal/cache"
	"go.lorenzomilicia.dev/imgup/internal/document"
	"go.lorenzomilicia.dev/imgup/internal/encoder"
	"go.lorenzomilicia.dev/imgup/internal/frontmatter"
	"go.lorenzomilicia.dev/imgup/internal/links"
	"go.lorenzomilicia.dev/imgup/internal/settings"
	"go.lorenzomilicia.dev/imgup/internal/uploader"
	"go.lorenzomilicia.dev/imgup/internal/vault"
	"golang.org/x/sync/semaphore"
)

// UploadKey is the front-matter key that enables uploads for one document
const UploadKey = "upload-image"

// ErrNotEligible is returned by commands when uploads are not enabled
var ErrNotEligible = errors.New("upload is not enabled for this document")

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 5
)

// Options configures an Orchestrator
type Options struct {
	Settings settings.Settings
	Gateway  uploader.Gateway
	// Vault resolves local references. Local images are skipped when nil.
	Vault    *vault.Vault
	Notifier Notifier
	// Client downloads network images
	Client   *http.Client
	Observer Observer
}

// Orchestrator turns paste, drop and command triggers into upload jobs. Every
// job runs in its own goroutine and patches the document through a shared
// per-document Patcher.
type Orchestrator struct {
	settings settings.Settings
	gateway  uploader.Gateway
	vault    *vault.Vault
	notifier Notifier
	client   *http.Client
	observer Observer
	cache    *cache.Cache
	sem      *semaphore.Weighted
	wg       sync.WaitGroup

	mu       sync.Mutex
	patchers map[document.Document]*patcherEntry
}

// patcherEntry counts the triggers and jobs currently holding a patcher
type patcherEntry struct {
	p     *document.Patcher
	holds int
}

// New creates an orchestrator owning a fresh cache
func New(opts Options) *Orchestrator {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = LogNotifier{}
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Settings.RequestTimeout}
	}
	limit := opts.Settings.MaxConcurrentUploads
	if limit <= 0 {
		limit = 1
	}

	return &Orchestrator{
		settings: opts.Settings,
		gateway:  opts.Gateway,
		vault:    opts.Vault,
		notifier: notifier,
		client:   client,
		observer: opts.Observer,
		cache:    cache.New(),
		sem:      semaphore.NewWeighted(int64(limit)),
		patchers: make(map[document.Document]*patcherEntry),
	}
}

// EnablePlugin reports whether uploads are allowed. An explicit true under
// UploadKey in the front matter wins over every setting.
func EnablePlugin(s settings.Settings, fm frontmatter.Values) bool {
	if v, ok := fm.Bool(UploadKey); ok && v {
		return true
	}
	return s.Enabled()
}

// Eligible applies EnablePlugin to the front matter of doc
func (o *Orchestrator) Eligible(doc document.Document) bool {
	p, release := o.acquire(doc)
	defer release()
	fm, err := frontmatter.Parse(p.Value())
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring unreadable front matter")
	}
	return EnablePlugin(o.settings, fm)
}

// HandlePaste processes a paste into doc and reports whether it consumed the
// event, in which case the host must not insert the clipboard itself.
func (o *Orchestrator) HandlePaste(ctx context.Context, doc document.Document, evt PasteEvent) bool {
	if !o.Eligible(doc) {
		return false
	}
	p, release := o.acquire(doc)
	defer release()

	images := imageFiles(evt.Files)
	if len(images) > 0 && (evt.Text == "" || o.settings.ApplyImageWithText) {
		o.uploadFiles(ctx, doc, p, images)
		return true
	}

	if !o.settings.WorkOnNetwork || evt.Text == "" {
		return false
	}
	refs := links.Remote(links.Extract(evt.Text), o.settings.NetworkBlockList())
	if len(refs) == 0 {
		return false
	}

	// The pasted text must be in the buffer before any rewrite can land
	p.Insert(evt.Text)
	byPath := groupByPath(evt.Text)
	for _, ref := range refs {
		o.uploadNetwork(ctx, doc, byPath[ref.Path])
	}
	return true
}

// HandleDrop processes a file drop onto doc and reports whether it consumed
// the event
func (o *Orchestrator) HandleDrop(ctx context.Context, doc document.Document, evt DropEvent) bool {
	if !o.Eligible(doc) {
		return false
	}
	if evt.InsertLocalLink {
		return false
	}
	images := imageFiles(evt.Files)
	if len(images) == 0 {
		return false
	}
	p, release := o.acquire(doc)
	defer release()
	o.uploadFiles(ctx, doc, p, images)
	return true
}

// Wait blocks until every started job has finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close waits for in-flight jobs and drops the cache. Patchers are released
// as soon as no trigger or job holds them, so Close is only needed to drop
// the cache.
func (o *Orchestrator) Close() {
	o.Wait()
	o.cache.Clear()

	o.mu.Lock()
	clear(o.patchers)
	o.mu.Unlock()
}

// acquire returns the patcher of doc and holds it until release is called.
// Every edit to doc goes through the same patcher while any hold is live.
func (o *Orchestrator) acquire(doc document.Document) (*document.Patcher, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.patchers[doc]
	if !ok {
		e = &patcherEntry{p: document.NewPatcher(doc)}
		o.patchers[doc] = e
	}
	e.holds++

	var once sync.Once
	return e.p, func() {
		once.Do(func() { o.release(doc) })
	}
}

func (o *Orchestrator) release(doc document.Document) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.patchers[doc]
	if !ok {
		return
	}
	e.holds--
	if e.holds <= 0 {
		delete(o.patchers, doc)
	}
}

// groupByPath indexes every reference of text by path
func groupByPath(text string) map[string][]links.Reference {
	byPath := make(map[string][]links.Reference)
	for _, ref := range links.Scan(text) {
		byPath[ref.Path] = append(byPath[ref.Path], ref)
	}
	return byPath
}

// uploadFiles inserts one placeholder per file, synchronously and in order,
// then starts the jobs
func (o *Orchestrator) uploadFiles(ctx context.Context, doc document.Document, p *document.Patcher, files []File) {
	jobs := make([]*job, 0, len(files))
	p.Do(func(doc document.Document) {
		for _, f := range files {
			id := o.uniqueID(doc.Value())
			token := PlaceholderText(o.settings.Language, id)
			doc.ReplaceSelection(token + "\n\n")
			jobs = append(jobs, o.placeholderJob(id, token, f))
		}
	})
	for _, j := range jobs {
		o.start(ctx, doc, j)
	}
}

func (o *Orchestrator) placeholderJob(id, token string, f File) *job {
	return &job{
		id:     id,
		name:   f.Name,
		path:   f.Path,
		source: f.source(),
		patch: func(p *document.Patcher, url string) {
			if !p.ReplaceFirst(token, o.settings.MarkdownImage(f.Name, url)) {
				log.Warn().Str("job", id).Msg("Placeholder vanished before patching")
			}
		},
		fail: func(p *document.Patcher, err error) {
			p.ReplaceFirst(token, FailureMarker(o.settings.Language))
		},
	}
}

// uploadNetwork re-uploads a remote image and rewrites every reference to it.
// refs share one path.
func (o *Orchestrator) uploadNetwork(ctx context.Context, doc document.Document, refs []links.Reference) {
	ref := refs[0]
	o.notifier.Notify(localize(o.settings.Language, msgNetworkUploading, ref.Path))
	j := o.rewriteJob(refs, &encoder.RemoteSource{URL: ref.Path, Client: o.client})
	j.done = func(_ *document.Patcher, url string) {
		o.notifier.Notify(localize(o.settings.Language, msgNetworkUploaded, url))
	}
	o.start(ctx, doc, j)
}

// rewriteJob replaces every occurrence of each reference's source text once
// uploaded. The first reference names the job.
func (o *Orchestrator) rewriteJob(refs []links.Reference, src encoder.Source) *job {
	return &job{
		id:     o.uniqueID(""),
		name:   refs[0].Name,
		path:   refs[0].Path,
		source: src,
		patch: func(p *document.Patcher, url string) {
			for _, ref := range refs {
				p.ReplaceAll(ref.Source, ref.Rewrite(url))
			}
		},
	}
}

// uniqueID draws ids until the resulting placeholder does not occur in text
func (o *Orchestrator) uniqueID(text string) string {
	for {
		b := make([]byte, idLength)
		for i := range b {
			b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
		}
		id := string(b)
		if !strings.Contains(text, PlaceholderText(o.settings.Language, id)) {
			return id
		}
	}
}
