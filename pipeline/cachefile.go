package pipeline

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"io"
	"os"
	"time"

	"github.com/pierrec/lz4"
)

// ErrCacheFormat is reported for a missing magic, truncated header or any
// other sign the file is not a pipeline cache written by this engine.
var ErrCacheFormat = errors.New("pipeline: corrupted or not a pipeline cache file")

// Sizes relevant to the header of the cache file.
const (
	magicLength            = 4
	headerSizeNumberLength = 8
)

// cacheFileVersion is bumped whenever the on-disk layout changes; files
// with a different version are treated as corrupt and ignored.
const cacheFileVersion = 1

var cacheMagic = []byte{'L', 'V', 'P', 'C'}

// cacheHeader is the gob-encoded file header following the magic.
type cacheHeader struct {
	Version        int64
	DeviceID       string
	DateCreated    int64
	Size           int64
	CompressedSize int64
}

// WriteCacheFile persists the raw pipeline cache blob at path. The blob
// is lz4 compressed and preceded by a versioned header keyed to the
// device identity, so a cache written by a different driver or engine
// revision is never fed back to the device.
func WriteCacheFile(path, deviceID string, blob []byte) error {
	var compressed bytes.Buffer
	zw := lz4.NewWriter(&compressed)
	if _, err := io.Copy(zw, bytes.NewReader(blob)); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	rawHeader, err := gobEncode(cacheHeader{
		Version:        cacheFileVersion,
		DeviceID:       deviceID,
		DateCreated:    time.Now().Unix(),
		Size:           int64(len(blob)),
		CompressedSize: int64(compressed.Len()),
	})
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(cacheMagic); err != nil {
		return err
	}
	if _, err := f.Write(int64ToBinary(int64(len(rawHeader)))); err != nil {
		return err
	}
	if _, err := f.Write(rawHeader); err != nil {
		return err
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return err
	}
	return f.Sync()
}

// ReadCacheFile loads a blob previously written with WriteCacheFile.
// Anything unexpected (bad magic, version or device mismatch,
// truncation) comes back as ErrCacheFormat; callers degrade to an
// empty cache.
func ReadCacheFile(path, deviceID string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, magicLength)
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, ErrCacheFormat
	}
	if !bytes.Equal(magic, cacheMagic) {
		return nil, ErrCacheFormat
	}

	headerSizeBytes := make([]byte, headerSizeNumberLength)
	if _, err := io.ReadFull(f, headerSizeBytes); err != nil {
		return nil, ErrCacheFormat
	}
	headerSize, err := binaryToInt64(headerSizeBytes)
	if err != nil || headerSize <= 0 {
		return nil, ErrCacheFormat
	}

	rawHeader := make([]byte, headerSize)
	if _, err := io.ReadFull(f, rawHeader); err != nil {
		return nil, ErrCacheFormat
	}
	var header cacheHeader
	if err := gobDecode(&header, rawHeader); err != nil {
		return nil, ErrCacheFormat
	}
	if header.Version != cacheFileVersion || header.DeviceID != deviceID {
		return nil, ErrCacheFormat
	}
	if header.Size < 0 || header.CompressedSize < 0 {
		return nil, ErrCacheFormat
	}

	blob := make([]byte, header.Size)
	if _, err := io.ReadFull(lz4.NewReader(f), blob); err != nil {
		return nil, ErrCacheFormat
	}
	return blob, nil
}

func int64ToBinary(num int64) []byte {
	buf := bytes.NewBuffer([]byte{})
	if err := binary.Write(buf, binary.LittleEndian, &num); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func binaryToInt64(bts []byte) (int64, error) {
	var num int64
	if err := binary.Read(bytes.NewReader(bts), binary.LittleEndian, &num); err != nil {
		return 0, err
	}
	return num, nil
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	return gob.NewDecoder(bytes.NewBuffer(bts)).Decode(obj)
}
