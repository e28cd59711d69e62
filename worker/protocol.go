package worker

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
)

// Message types on the worker wire. Requests travel host to worker as
// JSON lines on stdin; replies come back as framed JSON on stderr.
const (
	TypeInit = "init"
	TypeRun  = "run"

	TypeReady  = "ready"
	TypeResult = "result"
	TypeError  = "error"
)

// Frame markers on the worker's stderr stream. Anything outside a frame
// is ordinary stderr output and passes through untouched.
// Format: \x00RUNCELL:{json}\x00
const (
	framePrefix = "\x00RUNCELL:"
	frameSuffix = "\x00"
)

// Request is a host-to-worker message.
type Request struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Language string `json:"language,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

// Reply is a worker-to-host message. Ready replies carry Version;
// result and error replies carry the correlation ID of the request
// they answer.
type Reply struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload string `json:"payload,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// findFrame locates the next frame start in content, or -1.
func findFrame(content string) int {
	return strings.Index(content, framePrefix)
}

// partialPrefix reports how many trailing bytes of content could still
// grow into a frame marker once more bytes arrive.
func partialPrefix(content string) int {
	max := len(framePrefix) - 1
	if max > len(content) {
		max = len(content)
	}
	for k := max; k > 0; k-- {
		if strings.HasSuffix(content, framePrefix[:k]) {
			return k
		}
	}
	return 0
}

// extractFrame pulls the frame payload starting at idx. Returns ok=false
// when the frame is not yet complete; remaining then holds the partial
// frame so the caller can buffer it until more bytes arrive.
func extractFrame(content string, idx int) (payload, remaining string, ok bool) {
	body := content[idx+len(framePrefix):]
	end := strings.Index(body, frameSuffix)
	if end == -1 {
		return "", content[idx:], false
	}
	return body[:end], body[end+len(frameSuffix):], true
}

// router demultiplexes the worker's stderr stream: framed replies are
// decoded and delivered to the waiter registered under their
// correlation ID, everything else accumulates as plain stderr.
//
// Entries in the pending table are removed exactly once: by a matching
// reply, by the caller cancelling its wait, or by closeAll.
type router struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	stderr  bytes.Buffer
	pending map[string]chan Reply
	readyCh chan Reply
	ready   bool
	closed  bool
}

func newRouter() *router {
	return &router{
		pending: make(map[string]chan Reply),
		readyCh: make(chan Reply, 1),
	}
}

// Write implements io.Writer for the module's stderr.
func (r *router) Write(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf.Write(data)

	for {
		content := r.buf.String()
		idx := findFrame(content)
		if idx == -1 {
			// The tail may be the start of a frame marker split across
			// writes; hold it back so the next write can complete it.
			keep := partialPrefix(content)
			r.stderr.WriteString(content[:len(content)-keep])
			r.buf.Reset()
			r.buf.WriteString(content[len(content)-keep:])
			break
		}

		r.stderr.WriteString(content[:idx])

		payload, remaining, ok := extractFrame(content, idx)
		r.buf.Reset()
		r.buf.WriteString(remaining)
		if !ok {
			break
		}

		var rep Reply
		if err := json.Unmarshal([]byte(payload), &rep); err != nil {
			// Malformed frame; surface it as stderr rather than drop it.
			r.stderr.WriteString(payload)
			continue
		}
		r.deliverLocked(rep)
	}

	return len(data), nil
}

func (r *router) deliverLocked(rep Reply) {
	if rep.Type == TypeReady {
		if !r.ready {
			r.ready = true
			r.readyCh <- rep
		}
		return
	}

	ch, ok := r.pending[rep.ID]
	if !ok {
		// Reply after the waiter timed out or cancelled. Drop it; the
		// correlation slot was already freed.
		return
	}
	delete(r.pending, rep.ID)
	ch <- rep
}

// Ready yields the worker's ready reply once.
func (r *router) Ready() <-chan Reply {
	return r.readyCh
}

// register creates the correlation entry for id. The returned channel
// receives exactly one reply, or is closed if the worker shuts down.
func (r *router) register(id string) (<-chan Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrWorkerClosed
	}
	ch := make(chan Reply, 1)
	r.pending[id] = ch
	return ch, nil
}

// cancel frees the correlation entry for id, if still live.
func (r *router) cancel(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// closeAll rejects every outstanding waiter by closing its channel.
func (r *router) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for id, ch := range r.pending {
		delete(r.pending, id)
		close(ch)
	}
}

// Stderr returns the accumulated plain (non-frame) stderr output.
func (r *router) Stderr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stderr.String()
}
