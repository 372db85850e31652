// Package netmetrics exposes Prometheus counters and gauges for the
// protocol engine's interesting events, per §4.9 of the specification.
// Metrics never change protocol behavior, only observe it.
package netmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hitsz-netlab/gonet/arp"
	"github.com/hitsz-netlab/gonet/icmp"
	"github.com/hitsz-netlab/gonet/ipv4"
	"github.com/hitsz-netlab/gonet/udp"
)

var (
	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netstack_frames_dropped_total",
		Help: "Frames dropped by a protocol layer, by layer and reason.",
	}, []string{"layer", "reason"})
	delivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netstack_delivered_total",
		Help: "Datagrams delivered to an upper-layer handler, by layer.",
	}, []string{"layer"})

	arpTableSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netstack_arp_table_size",
		Help: "Current number of resolved entries in the ARP table.",
	})
	arpRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netstack_arp_requests_sent_total",
		Help: "ARP requests broadcast by this stack.",
	})
	arpResolutions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netstack_arp_resolutions_total",
		Help: "ARP resolutions recorded (requests and replies received).",
	})

	ipFragmented = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netstack_ip_fragmented_total",
		Help: "Outbound datagrams split into more than one fragment.",
	})
	ipReassembled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netstack_ip_fragments_reassembled_total",
		Help: "Inbound datagrams successfully reassembled from fragments.",
	})

	icmpEchoReplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netstack_icmp_echo_replies_sent_total",
		Help: "ICMP echo replies sent.",
	})
	icmpEchoReplyReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netstack_icmp_echo_replies_received_total",
		Help: "ICMP echo replies received and stashed for a ping session.",
	})
	icmpUnreachableSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netstack_icmp_unreachable_sent_total",
		Help: "ICMP destination-unreachable messages sent; the code label is always empty.",
	}, []string{"code"})

	pingRTT = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netstack_ping_rtt_milliseconds",
		Help:    "Round-trip time of successful ping replies.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)

// Collector is the shared home for every protocol layer's counters. Its
// ARP/IPv4/ICMP/UDP methods each return a small adapter scoped to that
// layer's Metrics interface, so a single Collector value can back all
// four layers of a [github.com/hitsz-netlab/gonet/netstack.Stack]
// without its methods colliding (ipv4.Metrics and icmp.Metrics both
// define a same-named but differently-shaped Dropped method, which rules
// out implementing every interface directly on one type).
type Collector struct{}

// New returns a Collector recording into the process's default
// Prometheus registry.
func New() *Collector { return &Collector{} }

// ARP returns the arp.Metrics view of this Collector.
func (c *Collector) ARP() arp.Metrics { return arpAdapter{} }

// IPv4 returns the ipv4.Metrics view of this Collector.
func (c *Collector) IPv4() ipv4.Metrics { return ipv4Adapter{} }

// ICMP returns the icmp.Metrics view of this Collector.
func (c *Collector) ICMP() icmp.Metrics { return icmpAdapter{} }

// UDP returns the udp.Metrics view of this Collector.
func (c *Collector) UDP() udp.Metrics { return udpAdapter{} }

// ObserveRTT records a successful ping's round-trip time in
// milliseconds. icmp.PingSession has no metrics dependency and cmd/ping
// does not call it, so the histogram is only filled by callers that do.
func (c *Collector) ObserveRTT(ms float64) { pingRTT.Observe(ms) }

type arpAdapter struct{}

func (arpAdapter) RequestSent()    { arpRequestsSent.Inc() }
func (arpAdapter) Resolved()       { arpResolutions.Inc() }
func (arpAdapter) TableSize(n int) { arpTableSize.Set(float64(n)) }

type ipv4Adapter struct{}

func (ipv4Adapter) Delivered()         { delivered.WithLabelValues("ip").Inc() }
func (ipv4Adapter) Dropped(reason string) {
	framesDropped.WithLabelValues("ip", reason).Inc()
}
func (ipv4Adapter) Fragmented()  { ipFragmented.Inc() }
func (ipv4Adapter) Reassembled() { ipReassembled.Inc() }

type icmpAdapter struct{}

func (icmpAdapter) EchoReplied()       { icmpEchoReplied.Inc() }
func (icmpAdapter) EchoReplyReceived() { icmpEchoReplyReceived.Inc() }
func (icmpAdapter) UnreachableSent()   { icmpUnreachableSent.WithLabelValues("").Inc() }
func (icmpAdapter) Dropped()           { framesDropped.WithLabelValues("icmp", "invalid").Inc() }

type udpAdapter struct{}

func (udpAdapter) Delivered() { delivered.WithLabelValues("udp").Inc() }
func (udpAdapter) Dropped(reason string) {
	framesDropped.WithLabelValues("udp", reason).Inc()
}
