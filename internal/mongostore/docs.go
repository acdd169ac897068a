package mongostore

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/querymongo"
)

// objDoc is the stored form of an ir.Obj.
type objDoc struct {
	ID            string     `bson:"_id"`
	AppID         string     `bson:"appId"`
	GroupID       string     `bson:"groupId"`
	Tag           string     `bson:"tag"`
	ObjRecord     bson.D     `bson:"objRecord"`
	CreatedAt     time.Time  `bson:"createdAt"`
	CreatedBy     string     `bson:"createdBy"`
	CreatedByType string     `bson:"createdByType"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
	UpdatedBy     string     `bson:"updatedBy"`
	UpdatedByType string     `bson:"updatedByType"`
	DeletedAt     *time.Time `bson:"deletedAt"`
	DeletedBy     *string    `bson:"deletedBy"`
	DeletedByType *string    `bson:"deletedByType"`
	ShouldIndex   bool       `bson:"shouldIndex"`
	FieldsToIndex []string   `bson:"fieldsToIndex"`
}

func toDoc(o ir.Obj) objDoc {
	record := querymongo.ObjectToBSON(o.ObjRecord)
	return objDoc{
		ID:            o.ID,
		AppID:         o.AppID,
		GroupID:       o.GroupID,
		Tag:           o.Tag,
		ObjRecord:     record,
		CreatedAt:     o.CreatedAt.UTC(),
		CreatedBy:     o.CreatedBy,
		CreatedByType: o.CreatedByType,
		UpdatedAt:     o.UpdatedAt.UTC(),
		UpdatedBy:     o.UpdatedBy,
		UpdatedByType: o.UpdatedByType,
		DeletedAt:     o.DeletedAt,
		DeletedBy:     o.DeletedBy,
		DeletedByType: o.DeletedByType,
		ShouldIndex:   o.ShouldIndex,
		FieldsToIndex: o.FieldsToIndex,
	}
}

func fromDoc(d objDoc) (ir.Obj, error) {
	record := ir.IRObject{}
	if len(d.ObjRecord) > 0 {
		v, err := querymongo.FromBSON(d.ObjRecord)
		if err != nil {
			return ir.Obj{}, fmt.Errorf("obj %s: objRecord: %w", d.ID, err)
		}
		record = v.(ir.IRObject)
	}

	o := ir.Obj{
		ID:            d.ID,
		AppID:         d.AppID,
		GroupID:       d.GroupID,
		Tag:           d.Tag,
		ObjRecord:     record,
		CreatedAt:     d.CreatedAt.UTC(),
		CreatedBy:     d.CreatedBy,
		CreatedByType: d.CreatedByType,
		UpdatedAt:     d.UpdatedAt.UTC(),
		UpdatedBy:     d.UpdatedBy,
		UpdatedByType: d.UpdatedByType,
		DeletedBy:     d.DeletedBy,
		DeletedByType: d.DeletedByType,
		ShouldIndex:   d.ShouldIndex,
		FieldsToIndex: d.FieldsToIndex,
	}
	if d.DeletedAt != nil {
		t := d.DeletedAt.UTC()
		o.DeletedAt = &t
	}
	return o, nil
}

// fieldDoc is the stored form of an ir.ObjField.
type fieldDoc struct {
	ID                string    `bson:"_id"`
	AppID             string    `bson:"appId"`
	GroupID           string    `bson:"groupId"`
	Tag               string    `bson:"tag"`
	Path              string    `bson:"path"`
	ValueTypes        []string  `bson:"valueTypes"`
	IsArrayCompressed bool      `bson:"isArrayCompressed"`
	CreatedAt         time.Time `bson:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}
