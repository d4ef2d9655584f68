package main

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/tuple"
)

// benchRecord is the demo record type bench and build-index run against: a
// small order-like record with an indexed city and a numeric total.
type benchRecord struct {
	ID    int64
	City  string
	Total int64
}

type benchSerializer struct{}

func (benchSerializer) Serialize(r benchRecord) ([]byte, error) { return json.Marshal(r) }
func (benchSerializer) Deserialize(b []byte) (benchRecord, error) {
	var r benchRecord
	err := json.Unmarshal(b, &r)
	return r, err
}

type benchAccessor struct{}

func (benchAccessor) Extract(r benchRecord, path string) ([]tuple.Tuple, error) {
	switch path {
	case "city":
		return []tuple.Tuple{{tuple.String(r.City)}}, nil
	case "total":
		return []tuple.Tuple{{tuple.Int(r.Total)}}, nil
	default:
		return nil, nil
	}
}

type benchPrimaryKey struct{}

func (benchPrimaryKey) Evaluate(r benchRecord, acc fieldaccessor.FieldAccessor[benchRecord]) ([]tuple.Tuple, error) {
	return []tuple.Tuple{{tuple.Int(r.ID)}}, nil
}

const recordTypeName = "Order"

func newBenchSchema() *metadata.Schema[benchRecord] {
	s := metadata.NewSchema[benchRecord]()
	s.AddRecordType(metadata.RecordType[benchRecord]{
		Name:       recordTypeName,
		PrimaryKey: benchPrimaryKey{},
		Fields:     map[string]bool{"id": true, "city": true, "total": true},
	})
	_ = s.AddIndex(metadata.Index[benchRecord]{
		Name:       "byCity",
		Kind:       metadata.KindValue,
		Expression: fieldaccessor.FieldKey[benchRecord]("city"),
	})
	_ = s.AddIndex(metadata.Index[benchRecord]{
		Name:       "byTotal",
		Kind:       metadata.KindValue,
		Expression: fieldaccessor.FieldKey[benchRecord]("total"),
	})
	return s
}

var cities = []string{"Tokyo", "Osaka", "Kyoto", "Nagoya", "Sapporo"}

func randomBenchRecord(rng *rand.Rand, id int64) benchRecord {
	return benchRecord{
		ID:    id,
		City:  cities[rng.Intn(len(cities))],
		Total: rng.Int63n(100000),
	}
}

func (r benchRecord) String() string {
	return fmt.Sprintf("Order{id=%d city=%s total=%d}", r.ID, r.City, r.Total)
}
