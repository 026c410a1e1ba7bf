package main

import (
	"fmt"
	"os"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"

	"github.com/Jon-Bright/gpioctl/pinctl"
)

// quiesce is the number of milliseconds to wait for existing work to be completed.
const quiesce = 250

// publishClient is the part of mqttlib.Client the publisher uses.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqttlib.Token
}

func connectMQTT(broker string) (mqttlib.Client, error) {
	host, _ := os.Hostname()
	opts := mqttlib.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("%s-%s-%d", MODULE, host, os.Getpid())).
		SetAutoReconnect(true)
	c := mqttlib.NewClient(opts)
	t := c.Connect()
	<-t.Done()
	if err := t.Error(); err != nil {
		return nil, err
	}
	debug.InfoLog.Printf("connected to mqtt broker %s", broker)
	return c, nil
}

// publisher samples the input pins every interval and publishes the level of
// each one that changed, as 1 or 0 on <topic>/<pin>. The first sample
// publishes every input.
type publisher struct {
	client   publishClient
	mgr      *pinctl.Manager
	topic    string
	interval time.Duration
	last     map[int]bool
}

func newPublisher(c publishClient, mgr *pinctl.Manager, topic string, interval time.Duration) *publisher {
	return &publisher{client: c, mgr: mgr, topic: topic, interval: interval, last: map[int]bool{}}
}

func (p *publisher) run(stop <-chan struct{}) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	p.poll()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			p.poll()
		}
	}
}

func (p *publisher) poll() {
	for _, n := range p.mgr.Inputs() {
		high, err := p.mgr.Read(n)
		if err != nil {
			// Reconfigured since Inputs.
			continue
		}
		if last, ok := p.last[n]; ok && last == high {
			continue
		}
		p.last[n] = high
		topic := fmt.Sprintf("%s/%d", p.topic, n)
		debug.DebugLog.Printf("publishing %s to topic %v", levelString(high), topic)
		t := p.client.Publish(topic, 0, true, levelString(high))
		go func() {
			<-t.Done()
			if err := t.Error(); err != nil {
				debug.ErrorLog.Printf("publishing topic %v: %v", topic, err)
			}
		}()
	}
}
