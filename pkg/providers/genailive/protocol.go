package genailive

import "encoding/json"

// Wire types for the Gemini Live BidiGenerateContent websocket protocol.
// Every frame in either direction is a JSON object with exactly one of the
// top-level fields set.

// clientFrame is an outbound frame.
type clientFrame struct {
	Setup         *setupPayload         `json:"setup,omitempty"`
	RealtimeInput *realtimeInputPayload `json:"realtimeInput,omitempty"`
	ClientContent *clientContentPayload `json:"clientContent,omitempty"`
}

// setupPayload is the first frame on every connection. The server answers
// with setupComplete before any media flows.
type setupPayload struct {
	Model              string            `json:"model"`
	GenerationConfig   *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction  *content          `json:"systemInstruction,omitempty"`
	InputTranscription *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputTranscript   *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig *voiceConfig `json:"voiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	// Data is base64-encoded raw bytes.
	Data string `json:"data"`
}

type realtimeInputPayload struct {
	Audio *inlineData `json:"audio,omitempty"`
}

type clientContentPayload struct {
	Turns        []content `json:"turns,omitempty"`
	TurnComplete bool      `json:"turnComplete"`
}

// serverFrame is an inbound frame.
type serverFrame struct {
	SetupComplete *json.RawMessage      `json:"setupComplete,omitempty"`
	ServerContent *serverContentPayload `json:"serverContent,omitempty"`
	GoAway        *goAwayPayload        `json:"goAway,omitempty"`
}

type serverContentPayload struct {
	ModelTurn           *content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type transcription struct {
	Text string `json:"text"`
}

// goAway warns that the server will drop the connection shortly.
type goAwayPayload struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}
