// Package rtpsink streams captured slots as RTP. Video and audio are sent
// uncompressed on separate SSRCs, each frame split across as many packets
// as the MTU requires, and RTCP sender reports follow at a fixed interval.
package rtpsink

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/avcapture/internal/logging"
	"github.com/pion/avcapture/pkg/prop"
	"github.com/pion/avcapture/pkg/ring"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

var logger = logging.NewLogger("avcapture/sink/rtpsink")

const (
	// DefaultMTU fits a packet inside an Ethernet frame with IP and UDP headers.
	DefaultMTU = 1200
	// VideoClockRate is the RTP clock used for video timestamps.
	VideoClockRate = 90000
	// DefaultReportInterval is how often sender reports are written.
	DefaultReportInterval = 5 * time.Second

	defaultVideoPayloadType = 96
	defaultAudioPayloadType = 97
	rtpHeaderSize           = 12
)

var errMTUTooSmall = errors.New("rtpsink: mtu leaves no room for payload")

// Config describes the RTP session. Media must match what the pipeline
// captures, as it drives timestamp increments.
type Config struct {
	Media            prop.Media
	MTU              uint16
	VideoPayloadType uint8
	AudioPayloadType uint8
	VideoSSRC        uint32
	AudioSSRC        uint32
	ReportInterval   time.Duration
}

func (c *Config) setDefaults() {
	if c.MTU == 0 {
		c.MTU = DefaultMTU
	}
	if c.VideoPayloadType == 0 {
		c.VideoPayloadType = defaultVideoPayloadType
	}
	if c.AudioPayloadType == 0 {
		c.AudioPayloadType = defaultAudioPayloadType
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = DefaultReportInterval
	}
	if c.VideoSSRC == 0 {
		c.VideoSSRC = 0x41560001
	}
	if c.AudioSSRC == 0 {
		c.AudioSSRC = 0x41560002
	}
}

type stream struct {
	ssrc       uint32
	clockRate  uint32
	packetizer rtp.Packetizer
	// samples is the timestamp increment for one frame, 0 when computed per frame.
	samples uint32

	packets   uint32
	octets    uint32
	rtpTime   uint32
	lastFrame time.Time
}

// Sink writes one datagram per Write call to the RTP writer, and sender
// reports to the RTCP writer when one is given.
type Sink struct {
	mu     sync.Mutex
	rtpW   io.Writer
	rtcpW  io.Writer
	cfg    Config
	video  *stream
	audio  *stream
	now    func() time.Time
	report time.Time
	rate   *bitrateTracker
}

// Stats summarises what a Sink has sent.
type Stats struct {
	VideoPackets uint32
	AudioPackets uint32
	// Bitrate is the RTP payload rate over the last second, in bits per second.
	Bitrate float64
}

// New creates a Sink. rtcpW may be nil to disable sender reports.
func New(rtpW, rtcpW io.Writer, cfg Config) (*Sink, error) {
	cfg.setDefaults()
	if cfg.MTU <= rtpHeaderSize {
		return nil, errMTUTooSmall
	}

	s := &Sink{
		rtpW:  rtpW,
		rtcpW: rtcpW,
		cfg:   cfg,
		now:   time.Now,
		rate:  newBitrateTracker(time.Second),
	}

	videoSamples := uint32(VideoClockRate / 30)
	if cfg.Media.FrameRate > 0 {
		videoSamples = uint32(float32(VideoClockRate) / cfg.Media.FrameRate)
	}
	s.video = &stream{
		ssrc:      cfg.VideoSSRC,
		clockRate: VideoClockRate,
		packetizer: rtp.NewPacketizer(cfg.MTU, cfg.VideoPayloadType, cfg.VideoSSRC,
			&chunkPayloader{}, rtp.NewRandomSequencer(), VideoClockRate),
		samples: videoSamples,
	}

	if cfg.Media.SampleRate > 0 {
		s.audio = &stream{
			ssrc:      cfg.AudioSSRC,
			clockRate: uint32(cfg.Media.SampleRate),
			packetizer: rtp.NewPacketizer(cfg.MTU, cfg.AudioPayloadType, cfg.AudioSSRC,
				&chunkPayloader{align: cfg.Media.ChannelCount * cfg.Media.SampleSize},
				rtp.NewRandomSequencer(), uint32(cfg.Media.SampleRate)),
		}
	}
	return s, nil
}

// Process sends the slot's valid video bytes and, when present, its audio.
func (s *Sink) Process(slot *ring.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if err := s.send(s.video, slot.VideoData(), s.video.samples, now); err != nil {
		return fmt.Errorf("video frame %d: %w", slot.Sequence, err)
	}

	if s.audio != nil && slot.HasAudio() {
		data := slot.AudioData()
		frameBytes := s.cfg.Media.ChannelCount * s.cfg.Media.SampleSize
		var samples uint32
		if frameBytes > 0 {
			samples = uint32(len(data) / frameBytes)
		}
		if err := s.send(s.audio, data, samples, now); err != nil {
			return fmt.Errorf("audio frame %d: %w", slot.Sequence, err)
		}
	}

	if s.rtcpW != nil && now.Sub(s.report) >= s.cfg.ReportInterval {
		s.report = now
		if err := s.writeReports(now); err != nil {
			logger.Warnf("sender report: %v", err)
		}
	}
	return nil
}

func (s *Sink) send(st *stream, payload []byte, samples uint32, now time.Time) error {
	packets := st.packetizer.Packetize(payload, samples)
	for _, p := range packets {
		buf, err := p.Marshal()
		if err != nil {
			return err
		}
		if _, err := s.rtpW.Write(buf); err != nil {
			return err
		}
		st.packets++
		st.octets += uint32(len(p.Payload))
		s.rate.add(len(p.Payload), now)
	}
	if len(packets) > 0 {
		st.rtpTime = packets[0].Timestamp
		st.lastFrame = now
	}
	return nil
}

func (s *Sink) writeReports(now time.Time) error {
	var pkts []rtcp.Packet
	for _, st := range []*stream{s.video, s.audio} {
		if st == nil || st.packets == 0 {
			continue
		}
		pkts = append(pkts, &rtcp.SenderReport{
			SSRC:        st.ssrc,
			NTPTime:     ntpTime(now),
			RTPTime:     st.rtpTime + rtpElapsed(now.Sub(st.lastFrame), st.clockRate),
			PacketCount: st.packets,
			OctetCount:  st.octets,
		})
	}
	if len(pkts) == 0 {
		return nil
	}
	buf, err := rtcp.Marshal(pkts)
	if err != nil {
		return err
	}
	_, err = s.rtcpW.Write(buf)
	return err
}

func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		VideoPackets: s.video.packets,
		Bitrate:      s.rate.bitrate(),
	}
	if s.audio != nil {
		st.AudioPackets = s.audio.packets
	}
	return st
}

func rtpElapsed(d time.Duration, clockRate uint32) uint32 {
	return uint32(d.Seconds() * float64(clockRate))
}

// ntpTime converts t into the 64-bit NTP fixed point format.
func ntpTime(t time.Time) uint64 {
	const ntpEpochOffset = 2208988800
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) << 32 / 1e9
	return secs<<32 | frac
}

// chunkPayloader splits a raw frame into mtu-sized pieces. A non-zero
// align keeps audio sample frames whole within a packet.
type chunkPayloader struct {
	align int
}

func (c *chunkPayloader) Payload(mtu uint16, payload []byte) [][]byte {
	size := int(mtu)
	if c.align > 1 && size >= c.align {
		size -= size % c.align
	}
	if size <= 0 {
		return nil
	}

	out := make([][]byte, 0, (len(payload)+size-1)/size)
	for len(payload) > 0 {
		n := size
		if n > len(payload) {
			n = len(payload)
		}
		out = append(out, payload[:n])
		payload = payload[n:]
	}
	return out
}
