package storage

import (
	"encoding"

	"dedupstore/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBFile struct {
	ID        string `msgpack:"id"`
	Name      string `msgpack:"name"`
	Hash      string `msgpack:"hash"`
	Location  string `msgpack:"location"`
	Size      int64  `msgpack:"size"`
	MimeType  string `msgpack:"mimeType"`
	CreatedAt int64  `msgpack:"createdAt"`
}

func newDBFile(r models.FileRecord) *DBFile {
	return &DBFile{
		ID:        r.ID,
		Name:      r.Name,
		Hash:      r.Hash,
		Location:  r.Location,
		Size:      r.Size,
		MimeType:  r.MimeType,
		CreatedAt: r.CreatedAt,
	}
}

func (f *DBFile) Record() models.FileRecord {
	return models.FileRecord{
		ID:        f.ID,
		Name:      f.Name,
		Hash:      f.Hash,
		Location:  f.Location,
		Size:      f.Size,
		MimeType:  f.MimeType,
		CreatedAt: f.CreatedAt,
	}
}

func (f *DBFile) Key() []byte {
	return []byte(f.ID)
}

func (f *DBFile) MarshalBinary() (data []byte, err error) {
	type alias DBFile
	return msgpack.Marshal((*alias)(f))
}

func (f *DBFile) UnmarshalBinary(data []byte) error {
	type alias DBFile
	return msgpack.Unmarshal(data, (*alias)(f))
}

var _ Storeable = (*DBFile)(nil)
