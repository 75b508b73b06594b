/* Copyright 2025 Dnote Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server implements the line based request protocol served on
// standard input and output
package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/pkg/errors"
)

// DefaultReplyQueueSize is the number of replies buffered before tasks block
const DefaultReplyQueueSize = 256

// maxLineSize is the longest request line accepted
const maxLineSize = 1024 * 1024

const shuttingDownMessage = "server is shutting down"

// Handler runs a request and reports its results through the responder. ACK
// and FINISHED are sent by the server.
type Handler interface {
	Handle(ctx context.Context, req Request, r *Responder)
}

// HandlerFunc adapts a function to a Handler
type HandlerFunc func(ctx context.Context, req Request, r *Responder)

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, req Request, r *Responder) {
	f(ctx, req, r)
}

// Responder sends the replies of one request
type Responder struct {
	id      string
	ctx     context.Context
	replies chan<- string
}

func (r *Responder) send(kind, payload string) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}

	select {
	case r.replies <- formatReply(r.id, kind, payload):
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

// Result sends a RESULT line. The payload must not contain spaces or newlines.
func (r *Responder) Result(payload string) error {
	return r.send(KindResult, payload)
}

// Error sends an ERROR line
func (r *Responder) Error(msg string) error {
	return r.send(KindError, flatten(msg))
}

// Server serves requests read line by line
type Server struct {
	handler   Handler
	queueSize int
}

// Options configures a Server
type Options struct {
	ReplyQueueSize int
}

// New returns a server dispatching requests to h
func New(h Handler, o Options) *Server {
	size := o.ReplyQueueSize
	if size <= 0 {
		size = DefaultReplyQueueSize
	}

	return &Server{handler: h, queueSize: size}
}

// session is the state of one Serve call
type session struct {
	server  *Server
	replies chan string

	taskCtx     context.Context
	cancelTasks context.CancelFunc
	tasks       sync.WaitGroup

	// exitID is the id of the exit request, written by the event loop
	// before the writer is told to quit
	exitID string
}

// readLines forwards lines from in until EOF or until stop is closed
func readLines(in io.Reader, lines chan<- string, stop <-chan struct{}) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-stop:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.ErrorWrap(err, "reading requests")
	}
}

// writeReplies writes replies until quit is closed, then writes whatever is
// still queued followed by the FINISHED of the exit request. Replies queued
// after that are never written.
func (ss *session) writeReplies(out io.Writer, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	replies := ss.replies

	w := bufio.NewWriter(out)
	write := func(line string) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			log.ErrorWrap(err, "writing reply")
			return
		}
		if err := w.Flush(); err != nil {
			log.ErrorWrap(err, "flushing reply")
		}
	}

	for {
		select {
		case line := <-replies:
			write(line)
		case <-quit:
			for {
				select {
				case line := <-replies:
					write(line)
				default:
					if ss.exitID != "" {
						write(formatReply(ss.exitID, KindFinished, ""))
					}
					return
				}
			}
		}
	}
}

// Serve reads requests from in and writes replies to out until an exit
// command is received, in reaches EOF, or ctx is done.
//
// EXIT_SERVER_AFTER_REQUESTS and EOF wait for running requests to finish.
// EXIT_SERVER_NOW and a done ctx cancel them and return without waiting.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	taskCtx, cancelTasks := context.WithCancel(ctx)
	defer cancelTasks()

	ss := &session{
		server:      s,
		replies:     make(chan string, s.queueSize),
		taskCtx:     taskCtx,
		cancelTasks: cancelTasks,
	}

	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go readLines(in, lines, stop)

	quit := make(chan struct{})
	writerDone := make(chan struct{})
	go ss.writeReplies(out, quit, writerDone)
	defer func() {
		close(quit)
		<-writerDone
	}()

	var drained chan struct{}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				if drained == nil {
					log.Info("input closed, waiting for running requests")
					drained = ss.drain()
				}
				continue
			}

			if strings.TrimSpace(line) == "" {
				continue
			}

			id, act := ss.dispatch(line, drained != nil)
			switch act {
			case actionStop:
				log.Info("exiting now")
				ss.exitID = id
				return nil
			case actionDrain:
				log.Info("exiting after running requests")
				ss.exitID = id
				drained = ss.drain()
			}
		case <-drained:
			return nil
		case <-ctx.Done():
			cancelTasks()
			ss.exitID = ""
			return errors.Wrap(ctx.Err(), "serving requests")
		}
	}
}

// drain returns a channel closed once every running request has finished
func (ss *session) drain() chan struct{} {
	ch := make(chan struct{})
	go func() {
		ss.tasks.Wait()
		close(ch)
	}()

	return ch
}

// reply queues a line from the event loop
func (ss *session) reply(id, kind, payload string) {
	ss.replies <- formatReply(id, kind, payload)
}

// action is what the event loop does after dispatching a line
type action int

const (
	actionContinue action = iota
	actionDrain
	actionStop
)

// dispatch handles one request line and returns the request id with the
// action it calls for
func (ss *session) dispatch(line string, draining bool) (string, action) {
	req, err := Parse(line)
	if err != nil {
		id := missingID
		if perr, ok := err.(*ParseError); ok {
			id = perr.ID
		}

		log.WithFields(log.Fields{"line": line}).Warn("rejecting malformed request")
		ss.reply(id, KindError, flatten(err.Error()))
		return id, actionContinue
	}

	switch {
	case req.Command == ExitServerNow:
		ss.reply(req.ID, KindAck, "")
		ss.cancelTasks()
		return req.ID, actionStop
	case draining:
		ss.reply(req.ID, KindError, shuttingDownMessage)
		return req.ID, actionContinue
	case req.Command == ExitServerAfterRequests:
		ss.reply(req.ID, KindAck, "")
		return req.ID, actionDrain
	}

	ss.tasks.Add(1)
	go ss.run(req)

	return req.ID, actionContinue
}

// run executes a request as its own task
func (ss *session) run(req Request) {
	defer ss.tasks.Done()

	r := &Responder{id: req.ID, ctx: ss.taskCtx, replies: ss.replies}
	if err := r.send(KindAck, ""); err != nil {
		return
	}

	entry := log.WithFields(log.Fields{"id": req.ID, "command": string(req.Command)})
	entry.Debug("handling request")

	func() {
		defer func() {
			if p := recover(); p != nil {
				entry.Error(fmt.Sprintf("request panicked: %v", p))
				r.Error("internal error")
			}
		}()

		ss.server.handler.Handle(ss.taskCtx, req, r)
	}()

	if err := r.send(KindFinished, ""); err != nil {
		entry.Debug("request cancelled before it finished")
	}
}
