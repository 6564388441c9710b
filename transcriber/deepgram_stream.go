package transcriber

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"nhooyr.io/websocket"
)

const (
	deepgramStreamURL   = "wss://api.deepgram.com/v1/listen"
	deepgramStreamModel = "nova-3"
)

type streamSessionConfig struct {
	SampleRate int
	Channels   int
	Language   string
	Model      string
}

// query encodes the session parameters for the /v1/listen websocket.
// Audio arrives as raw linear16 frames, so rate and channel count must
// be spelled out up front.
func (c streamSessionConfig) query() url.Values {
	q := url.Values{}
	if c.Model != "" {
		q.Set("model", c.Model)
	} else {
		q.Set("model", deepgramStreamModel)
	}
	q.Set("encoding", "linear16")
	if c.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(c.SampleRate))
	}
	if c.Channels > 0 {
		q.Set("channels", strconv.Itoa(c.Channels))
	}
	if c.Language != "" {
		q.Set("language", c.Language)
	}
	return q
}

// deepgramSocket is the websocket transport under streamSession. Binary
// frames carry PCM toward the server; the Finalize control message asks
// it to flush its decoder before we hang up.
type deepgramSocket struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func (d *Deepgram) startStream(ctx context.Context, cfg streamSessionConfig) (rawStreamSession, error) {
	endpoint, err := url.Parse(deepgramStreamURL)
	if err != nil {
		return nil, err
	}
	endpoint.RawQuery = cfg.query().Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	sockCtx, cancel := context.WithCancel(ctx)
	conn, _, err := websocket.Dial(sockCtx, endpoint.String(), &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		cancel()
		return nil, err
	}
	return &deepgramSocket{conn: conn, ctx: sockCtx, cancel: cancel}, nil
}

func (s *deepgramSocket) Send(pcm []byte) error {
	return s.conn.Write(s.ctx, websocket.MessageBinary, pcm)
}

func (s *deepgramSocket) CloseSend() error {
	return s.conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"Finalize"}`))
}

type deepgramStreamResponse struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r *deepgramStreamResponse) update() streamUpdate {
	u := streamUpdate{
		IsFinal:      r.IsFinal,
		SpeechFinal:  r.SpeechFinal,
		FromFinalize: r.FromFinalize,
	}
	if len(r.Channel.Alternatives) > 0 {
		u.Transcript = strings.TrimSpace(r.Channel.Alternatives[0].Transcript)
	}
	return u
}

func (s *deepgramSocket) Recv() (streamUpdate, error) {
	_, data, err := s.conn.Read(s.ctx)
	if err != nil {
		return streamUpdate{}, err
	}
	var resp deepgramStreamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return streamUpdate{}, err
	}
	return resp.update(), nil
}

func (s *deepgramSocket) Close() error {
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
