package backup

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/goccy/go-json"
	"github.com/golang/snappy"

	"recipesync/internal/domain/entity"
)

// Codec упаковывает снимок в артефакт: JSON, затем сжатие, затем шифрование age
type Codec struct {
	recipient age.Recipient
	identity  age.Identity
}

// NewCodec пустой recipient отключает шифрование новых копий,
// пустой identity запрещает чтение зашифрованных
func NewCodec(recipient, identity string) (*Codec, error) {
	c := &Codec{}
	if recipient != "" {
		r, err := age.ParseX25519Recipient(recipient)
		if err != nil {
			return nil, fmt.Errorf("parse age recipient: %w", err)
		}
		c.recipient = r
	}
	if identity != "" {
		id, err := age.ParseX25519Identity(identity)
		if err != nil {
			return nil, fmt.Errorf("parse age identity: %w", err)
		}
		c.identity = id
		if c.recipient == nil {
			c.recipient = id.Recipient()
		}
	}
	return c, nil
}

func (c *Codec) Encrypts() bool {
	return c.recipient != nil
}

func (c *Codec) Encode(art *Artifact, compression Compression) ([]byte, error) {
	raw, err := json.Marshal(art)
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}

	var buf bytes.Buffer
	var sink io.WriteCloser = nopWriteCloser{&buf}
	if c.recipient != nil {
		sink, err = age.Encrypt(&buf, c.recipient)
		if err != nil {
			return nil, fmt.Errorf("create encrypted writer: %w", err)
		}
	}

	var w io.WriteCloser
	switch compression {
	case CompressionGzip:
		w = gzip.NewWriter(sink)
	case CompressionSnappy:
		w = snappy.NewBufferedWriter(sink)
	case CompressionNone, "":
		w = nopWriteCloser{sink}
	default:
		return nil, fmt.Errorf("%w: compression %q", ErrInvalidRequest, compression)
	}

	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}
	if err := sink.Close(); err != nil {
		return nil, fmt.Errorf("finalize encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode любая ошибка чтения означает поврежденный артефакт
func (c *Codec) Decode(data []byte, compression Compression, encrypted bool) (*Artifact, error) {
	var r io.Reader = bytes.NewReader(data)
	if encrypted {
		if c.identity == nil {
			return nil, ErrNoIdentity
		}
		dr, err := age.Decrypt(r, c.identity)
		if err != nil {
			return nil, fmt.Errorf("%w: decrypt: %v", ErrCorruptBackup, err)
		}
		r = dr
	}

	switch compression {
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrCorruptBackup, err)
		}
		defer zr.Close()
		r = zr
	case CompressionSnappy:
		r = snappy.NewReader(r)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrCorruptBackup, err)
	}
	var art Artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCorruptBackup, err)
	}
	if art.Format != artifactFormat {
		return nil, fmt.Errorf("%w: unsupported format %d", ErrCorruptBackup, art.Format)
	}
	if got := entity.CountOf(art.Entities); got != art.Counts {
		return nil, fmt.Errorf("%w: item counts do not match", ErrCorruptBackup)
	}
	return &art, nil
}

// Checksum SHA-256 артефакта в hex
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
