package pipeline

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.lorenzomilicia.dev/imgup/internal/cache"
	"go.lorenzomilicia.dev/imgup/internal/document"
	"go.lorenzomilicia.dev/imgup/internal/encoder"
	"go.lorenzomilicia.dev/imgup/internal/uploader"
)

// job is one image moving through encode, cache check, upload and patch
type job struct {
	id     string
	name   string
	// path is the stable cache key, empty for in-memory blobs
	path   string
	source encoder.Source

	patch func(p *document.Patcher, url string)
	// fail is optional; rewrite jobs leave the document untouched
	fail func(p *document.Patcher, err error)
	// done is optional and runs after a successful patch
	done func(p *document.Patcher, url string)
}

// start runs j in its own goroutine, holding the patcher of doc until it
// finishes. Jobs outlive the trigger that created them and are never
// cancelled.
func (o *Orchestrator) start(ctx context.Context, doc document.Document, j *job) {
	p, release := o.acquire(doc)
	o.transition(j, StatePending, nil)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer release()
		o.run(context.WithoutCancel(ctx), p, j)
	}()
}

func (o *Orchestrator) run(ctx context.Context, p *document.Patcher, j *job) {
	o.transition(j, StateEncoding, nil)
	enc, err := encoder.Encode(ctx, j.source)
	if err != nil {
		o.failJob(p, j, err)
		return
	}
	if j.name == "" {
		j.name = j.source.Name()
	}

	o.transition(j, StateCacheCheck, nil)
	key := cache.KeyFor(j.path, enc.Data)
	url, hit := o.cache.Get(key)
	if hit {
		log.Debug().Str("job", j.id).Str("key", string(key)).Msg("Cache hit, skipping upload")
	} else {
		o.transition(j, StateUploading, nil)
		url, err = o.upload(ctx, j, enc)
		if err != nil {
			o.failJob(p, j, err)
			return
		}
		o.cache.Set(key, url)
	}

	o.transition(j, StatePatching, nil)
	j.patch(p, url)
	o.transition(j, StateDone, nil)

	if j.done != nil {
		j.done(p, url)
	}
}

func (o *Orchestrator) upload(ctx context.Context, j *job, enc *encoder.Encoded) (string, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer o.sem.Release(1)

	res := o.gateway.Upload(ctx, uploader.Job{
		PlaceholderID: j.id,
		Name:          j.name,
		Size:          enc.Size,
		MIMEType:      enc.MIMEType,
		Payload:       enc.Data,
	})
	if !res.OK {
		msg := res.Message
		if msg == "" {
			msg = "upload failed"
		}
		return "", errors.New(msg)
	}
	return res.URL, nil
}

func (o *Orchestrator) failJob(p *document.Patcher, j *job, err error) {
	log.Error().Err(err).Str("job", j.id).Str("name", j.name).Msg("Upload job failed")
	if j.fail != nil {
		j.fail(p, err)
	}
	o.notifier.Notify(err.Error())
	o.transition(j, StateFailed, err)
}

func (o *Orchestrator) transition(j *job, state State, err error) {
	log.Debug().Str("job", j.id).Str("name", j.name).Stringer("state", state).Msg("Job transition")
	if o.observer != nil {
		o.observer(Transition{JobID: j.id, Name: j.name, State: state, Err: err})
	}
}
