package dfsrpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/harshini-shah/dfs/pkg/dfs"
)

// maxMessageSize bounds a single RPC message. Large enough for a full
// read/write payload plus headers, small enough to refuse nonsense
// lengths from a confused peer.
const maxMessageSize = 16 << 20

// ReadMessage reads one framed message: a 4-byte fragment header with the
// high bit set followed by that many payload bytes.
func ReadMessage(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	raw := binary.BigEndian.Uint32(header[:])
	length := raw & 0x7FFFFFFF
	if length > maxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds limit", length)
	}

	message := make([]byte, length)
	if _, err := io.ReadFull(r, message); err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}
	return message, nil
}

// WriteMessage writes one framed message with the last-fragment bit set.
func WriteMessage(w io.Writer, message []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 0x80000000|uint32(len(message)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(message)
	return err
}

// EncodeCall marshals a call header and its argument body.
func EncodeCall(header CallHeader, args any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &header); err != nil {
		return nil, fmt.Errorf("marshal call header: %w", err)
	}
	if args != nil {
		if _, err := xdr.Marshal(&buf, args); err != nil {
			return nil, fmt.Errorf("marshal call arguments: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeCall unmarshals the call header and returns a reader positioned
// at the argument body.
func DecodeCall(message []byte) (CallHeader, *bytes.Reader, error) {
	reader := bytes.NewReader(message)
	var header CallHeader
	if _, err := xdr.Unmarshal(reader, &header); err != nil {
		return CallHeader{}, nil, fmt.Errorf("unmarshal call header: %w", err)
	}
	return header, reader, nil
}

// DecodeArgs unmarshals a procedure argument body.
func DecodeArgs(reader *bytes.Reader, args any) error {
	if _, err := xdr.Unmarshal(reader, args); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	return nil
}

// EncodeReply marshals a success reply carrying result.
func EncodeReply(xid uint32, result any) ([]byte, error) {
	var buf bytes.Buffer
	header := ReplyHeader{XID: xid, Status: statusOK}
	if _, err := xdr.Marshal(&buf, &header); err != nil {
		return nil, fmt.Errorf("marshal reply header: %w", err)
	}
	if result != nil {
		if _, err := xdr.Marshal(&buf, result); err != nil {
			return nil, fmt.Errorf("marshal reply body: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// EncodeErrorReply marshals a failure reply from err.
func EncodeErrorReply(xid uint32, err error) ([]byte, error) {
	var buf bytes.Buffer
	header := ReplyHeader{XID: xid, Status: statusOf(err), Message: err.Error()}
	if _, err := xdr.Marshal(&buf, &header); err != nil {
		return nil, fmt.Errorf("marshal error reply: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReply unmarshals the reply header. On a failure status the
// rehydrated *dfs.Error is returned; on success the returned reader is
// positioned at the result body.
func DecodeReply(message []byte) (uint32, *bytes.Reader, error) {
	reader := bytes.NewReader(message)
	var header ReplyHeader
	if _, err := xdr.Unmarshal(reader, &header); err != nil {
		return 0, nil, fmt.Errorf("unmarshal reply header: %w", err)
	}
	if header.Status != statusOK {
		return header.XID, nil, errorOf(header.Status, header.Message)
	}
	return header.XID, reader, nil
}

// statusOK is the wire status of a successful call. Error statuses are
// dfs.ErrorCode values shifted by one so zero stays unambiguous.
const statusOK uint32 = 0

func statusOf(err error) uint32 {
	if code, ok := dfs.CodeOf(err); ok {
		return uint32(code) + 1
	}
	return uint32(dfs.ErrRPC) + 1
}

func errorOf(status uint32, message string) error {
	return dfs.NewError(dfs.ErrorCode(status-1), message)
}
