// Package event connects the service to RabbitMQ. Every inbound and
// outbound event can be appended to a JSON line log, and the logs can be
// replayed on startup according to EVENT_MODE.
package event

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dm-service/config"

	"github.com/golang/glog"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ActionHeader string = "x-action"
	InLogFile    string = "in.log"
	OutLogFile   string = "out.log"

	// QueueMessenger carries the events this service emits.
	QueueMessenger string = "messenger"
	// QueueAPI carries actions other services ask this one to perform.
	QueueAPI string = "api"
)

// Replay modes.
const (
	ModeDisable   = "DISABLE"
	ModeInSendLog = "IN_SEND_LOG"
	ModeInSend    = "IN_SEND"
	ModeIn        = "IN"
	ModeOut       = "OUT"
)

// Envelope is one action handed to a queue listener.
type Envelope struct {
	Action string
	Data   []byte
	Out    Forward
}

// Forward tells a listener what it may do with the consequences of an
// envelope: push them to users and append them to the out log.
type Forward struct {
	Send bool
	Log  bool
}

type Subscription struct {
	Queue   string
	Channel chan Envelope
}

type LogEntry struct {
	Time    int64  `json:"time"`
	Service string `json:"service"`
	Action  string `json:"action"`
	Data    string `json:"data"`
}

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Bus struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	publisher  publishChannel

	mode   string
	logDir string

	mutex     sync.Mutex
	inLog     io.WriteCloser
	outLog    io.WriteCloser
	listeners map[string]chan Envelope
}

func newBus(publisher publishChannel, mode, logDir string) *Bus {
	if mode == "" {
		mode = ModeDisable
	}
	return &Bus{
		publisher: publisher,
		mode:      mode,
		logDir:    logDir,
		listeners: map[string]chan Envelope{},
	}
}

// Connect dials RabbitMQ, declares queues and opens the event logs.
func Connect(settings *config.Settings, queues []string) (*Bus, error) {
	connection, err := amqp.Dial(fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		settings.RabbitMQUser,
		settings.RabbitMQPassword,
		settings.RabbitMQHost,
		settings.RabbitMQPort,
	))
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	glog.Infof("connection opened to RabbitMQ server")

	channel, err := connection.Channel()
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("open RabbitMQ channel: %w", err)
	}

	for _, name := range queues {
		_, err := channel.QueueDeclare(
			name,  // name
			false, // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			connection.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
		glog.Infof("declared RabbitMQ queue: %s", name)
	}

	bus := newBus(channel, settings.EventMode, settings.EventLogDir)
	bus.connection = connection
	bus.channel = channel

	if err := bus.openLogs(); err != nil {
		connection.Close()
		return nil, err
	}
	return bus, nil
}

func (b *Bus) openLogs() error {
	if err := os.MkdirAll(b.logDir, 0700); err != nil {
		return fmt.Errorf("create event log dir: %w", err)
	}
	var err error
	b.inLog, err = os.OpenFile(filepath.Join(b.logDir, InLogFile), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("open in log: %w", err)
	}
	b.outLog, err = os.OpenFile(filepath.Join(b.logDir, OutLogFile), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("open out log: %w", err)
	}
	return nil
}

func (b *Bus) logging() bool {
	return b.mode != ModeDisable
}

// Subscribe starts consuming each queue into its listener channel.
func (b *Bus) Subscribe(subscriptions []Subscription) error {
	for _, subscription := range subscriptions {
		b.listeners[subscription.Queue] = subscription.Channel

		msgs, err := b.channel.Consume(
			subscription.Queue, // queue
			"",                 // consumer
			false,              // auto-ack
			false,              // exclusive
			false,              // no-local
			false,              // no-wait
			nil,                // args
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", subscription.Queue, err)
		}
		glog.Infof("subscribed to RabbitMQ [%s] queue", subscription.Queue)

		go b.consume(subscription, msgs)
	}
	return nil
}

func (b *Bus) consume(subscription Subscription, msgs <-chan amqp.Delivery) {
	for msg := range msgs {
		action, ok := msg.Headers[ActionHeader].(string)
		if !ok {
			glog.Warningf("event: message on %s without %s header dropped", subscription.Queue, ActionHeader)
			msg.Nack(false, false)
			continue
		}

		if b.logging() {
			b.write(b.inLog, LogEntry{
				Time:    time.Now().UnixMicro(),
				Service: subscription.Queue,
				Action:  action,
				Data:    string(msg.Body),
			})
		}

		msg.Ack(false)

		subscription.Channel <- Envelope{
			Action: action,
			Data:   msg.Body,
			Out: Forward{
				Send: true,
				Log:  true,
			},
		}
	}
	glog.Warningf("event: consumer for %s stopped", subscription.Queue)
}

// Emit publishes raw data with action to queue. When log is set the event is
// also appended to the out log.
func (b *Bus) Emit(queue, action string, data []byte, log bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := b.publisher.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Headers: amqp.Table{
				ActionHeader: action,
			},
			Body: data,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", action, queue, err)
	}

	if log && b.logging() {
		b.write(b.outLog, LogEntry{
			Time:    time.Now().UnixMicro(),
			Service: queue,
			Action:  action,
			Data:    string(data),
		})
	}
	return nil
}

// Publish encodes data as JSON and emits it on the messenger queue. Failures
// are only logged.
func (b *Bus) Publish(action string, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		glog.Errorf("event: encode %s: %v", action, err)
		return
	}
	if err := b.Emit(QueueMessenger, action, body, true); err != nil {
		glog.Errorf("event: %v", err)
	}
}

func (b *Bus) write(w io.Writer, entry LogEntry) {
	if w == nil {
		return
	}
	line, _ := json.Marshal(entry)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if _, err := w.Write(append(line, '\n')); err != nil {
		glog.Errorf("event: write log: %v", err)
	}
}

// Replay feeds the event logs back according to the configured mode.
func (b *Bus) Replay() error {
	switch b.mode {
	case ModeInSendLog:
		return b.ReplayIn(Forward{Send: true, Log: true})
	case ModeInSend:
		return b.ReplayIn(Forward{Send: true, Log: false})
	case ModeIn:
		return b.ReplayIn(Forward{Send: false, Log: false})
	case ModeOut:
		return b.ReplayOut()
	}
	return nil
}

// ReplayIn hands every logged inbound event to its queue listener.
func (b *Bus) ReplayIn(out Forward) error {
	return b.scan(InLogFile, func(entry LogEntry) error {
		listener, ok := b.listeners[entry.Service]
		if !ok {
			glog.Warningf("event: no listener for %s, skipping %s", entry.Service, entry.Action)
			return nil
		}
		listener <- Envelope{
			Action: entry.Action,
			Data:   []byte(entry.Data),
			Out:    out,
		}
		return nil
	})
}

// ReplayOut re-emits every logged outbound event without logging it again.
func (b *Bus) ReplayOut() error {
	return b.scan(OutLogFile, func(entry LogEntry) error {
		return b.Emit(entry.Service, entry.Action, []byte(entry.Data), false)
	})
}

func (b *Bus) scan(name string, fn func(LogEntry) error) error {
	file, err := os.Open(filepath.Join(b.logDir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		entry := LogEntry{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			glog.Warningf("event: skipping malformed %s line: %v", name, err)
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (b *Bus) Close() {
	for _, w := range []io.Closer{b.inLog, b.outLog} {
		if w != nil {
			w.Close()
		}
	}
	if b.connection != nil {
		b.connection.Close()
	}
}
