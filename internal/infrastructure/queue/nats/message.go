package nats

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/knowledge-assistant/internal/core/dedup"
	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const (
	headerFilename    = "Ingest-Filename"
	headerFingerprint = "Ingest-Fingerprint"

	replyCodeRejected = "rejected"
	replyCodeFailed   = "failed"
)

// ingestReply answers a document published with RequestIngest.
type ingestReply struct {
	Result *domain.IngestResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
	Code   string               `json:"code,omitempty"`
}

func newIngestMsg(subject string, doc domain.SourceDocument) (*nats.Msg, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal ingest message: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(headerFilename, doc.Filename)
	// Same content, same id: JetStream streams drop the repeat publish.
	msg.Header.Set(nats.MsgIdHdr, dedup.Fingerprint(string(doc.Content)))
	msg.Header.Set(headerFingerprint, msg.Header.Get(nats.MsgIdHdr))
	return msg, nil
}

func decodeIngestMsg(msg *nats.Msg) (domain.SourceDocument, error) {
	var doc domain.SourceDocument
	if err := json.Unmarshal(msg.Data, &doc); err != nil {
		return domain.SourceDocument{}, fmt.Errorf("decode ingest message: %w", err)
	}
	return doc, nil
}

func encodeReply(result *domain.IngestResult, err error) []byte {
	reply := ingestReply{Result: result}
	if err != nil {
		reply.Error = err.Error()
		reply.Code = replyCodeFailed
		if domain.IsKind(err, domain.ErrInvalidInput) {
			reply.Code = replyCodeRejected
		}
	}
	data, marshalErr := json.Marshal(reply)
	if marshalErr != nil {
		data, _ = json.Marshal(ingestReply{Error: marshalErr.Error(), Code: replyCodeFailed})
	}
	return data
}

func decodeReply(filename string, data []byte) (*domain.IngestResult, error) {
	var reply ingestReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("decode ingest reply: %w", err)
	}
	switch reply.Code {
	case "":
		if reply.Result == nil {
			return nil, errors.New("decode ingest reply: missing result")
		}
		return reply.Result, nil
	case replyCodeRejected:
		return reply.Result, domain.WrapError(domain.ErrInvalidInput, "ingest "+filename, errors.New(reply.Error))
	default:
		return reply.Result, fmt.Errorf("ingest %s: %s", filename, reply.Error)
	}
}
