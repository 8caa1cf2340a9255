package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/db/ent/schema/utils"
)

// Task is one actionable item recovered from a job's image.
type Task struct{ ent.Schema }

func (Task) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extracted_tasks"},
	}
}

func (Task) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("job_id", uuid.UUID{}),
		field.String("name").NotEmpty().
			Validate(utils.MaxRunes(constants.MaxTaskNameLength)),
		field.String("description").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("assignee").Optional().Nillable(),
		field.Time("due_date").Optional().Nillable(),
		field.String("priority").
			Default(string(constants.PriorityMedium)).
			Validate(utils.EnumValidator(constants.PrioritiesAsStringSlice()...)),
		field.Int("position_index").NonNegative(),
		field.Float("confidence_score").Optional().Nillable(),
		// bounding box in source-image pixels
		field.Int("bbox_x").Optional().Nillable(),
		field.Int("bbox_y").Optional().Nillable(),
		field.Int("bbox_width").Optional().Nillable(),
		field.Int("bbox_height").Optional().Nillable(),
	}
}

func (Task) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("tasks").
			Field("job_id").
			Unique().
			Required(),
	}
}

func (Task) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "position_index").Unique(),
	}
}
