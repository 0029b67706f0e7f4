package conflict

import (
	"fmt"
	"sort"
	"time"

	"recipesync/internal/domain/entity"
)

// Input две версии одной сущности и сведения о том, какие поля меняла каждая сторона
type Input struct {
	// Local локальное представление: база из кэша с наложенным локальным патчем
	Local *entity.Entity
	// Remote текущая версия на сервере
	Remote *entity.Entity
	// LocalFields поля, измененные локально, и их новые значения
	LocalFields  map[string]any
	LocalDeleted bool
	// RemoteFields поля, измененные на сервере после базы локальной правки
	RemoteFields []string

	LocalTimestamp  time.Time
	RemoteTimestamp time.Time

	// MergedData значения для полей, измененных обеими сторонами (только для merge)
	MergedData map[string]any
}

// Decision результат работы резолвера
type Decision struct {
	// Open конфликт не разрешен автоматически и должен быть сохранен
	Open       bool
	Resolution Resolution
	// Entity итоговая версия; nil, если конфликт открыт
	Entity *entity.Entity
	// Patch изменения, которые нужно принудительно отправить на сервер, чтобы он пришел к Entity
	Patch  map[string]any
	Delete bool
	// ConflictFields поля, измененные обеими сторонами
	ConflictFields []string
}

// Push нужно ли отправлять результат на сервер
func (d Decision) Push() bool {
	return !d.Open && (len(d.Patch) > 0 || d.Delete)
}

// Resolve чистая функция: одинаковые входные данные всегда дают одинаковое решение.
// Время не читается, случайность не используется.
func Resolve(in Input, policy Policy) (Decision, error) {
	if !policy.Valid() {
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}

	if in.Remote == nil {
		return decide(ResolutionLocal, local(in), nil, nil), nil
	}

	fields := Overlap(in)
	if len(fields) == 0 && policy != PolicyMerge {
		return decide(ResolutionMerge, union(in, nil), in.Remote, nil), nil
	}

	switch policy {
	case PolicyLocal:
		return decide(ResolutionLocal, local(in), in.Remote, fields), nil
	case PolicyRemote:
		return decide(ResolutionRemote, in.Remote.Clone(), in.Remote, fields), nil
	case PolicyNewest:
		if in.LocalTimestamp.After(in.RemoteTimestamp) {
			return decide(ResolutionLocal, local(in), in.Remote, fields), nil
		}
		return decide(ResolutionRemote, in.Remote.Clone(), in.Remote, fields), nil
	case PolicyAsk:
		return Decision{Open: true, ConflictFields: fields}, nil
	}

	// merge
	var missing []string
	for _, name := range fields {
		if _, ok := in.MergedData[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Decision{Open: true, ConflictFields: missing}, ErrIrreconcilable
	}
	return decide(ResolutionMerge, union(in, in.MergedData), in.Remote, fields), nil
}

// Overlap поля, измененные обеими сторонами. Удаление с одной стороны
// конфликтует с любой правкой на другой.
func Overlap(in Input) []string {
	if in.Remote == nil {
		return nil
	}
	remoteDeleted := in.Remote.Deleted
	switch {
	case in.LocalDeleted && remoteDeleted:
		return nil
	case in.LocalDeleted:
		return sorted(in.RemoteFields)
	case remoteDeleted:
		if len(in.LocalFields) == 0 {
			return nil
		}
		return sortedKeys(in.LocalFields)
	}

	remote := make(map[string]struct{}, len(in.RemoteFields))
	for _, name := range in.RemoteFields {
		remote[name] = struct{}{}
	}
	var out []string
	for name := range in.LocalFields {
		if _, ok := remote[name]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// local локальная версия целиком
func local(in Input) *entity.Entity {
	var e *entity.Entity
	if in.Local != nil {
		e = in.Local.Clone()
	} else {
		e = in.Remote.Clone()
		e.Patch(in.LocalFields, in.LocalTimestamp)
	}
	e.Deleted = in.LocalDeleted
	return e
}

// union серверная версия с наложенными локальными правками и, поверх них, mergedData
func union(in Input, merged map[string]any) *entity.Entity {
	e := in.Remote.Clone()
	if in.LocalDeleted && len(merged) == 0 {
		e.Deleted = true
		return e
	}
	fields := make(map[string]any, len(in.LocalFields)+len(merged))
	for k, v := range in.LocalFields {
		fields[k] = v
	}
	for k, v := range merged {
		fields[k] = v
	}
	e.Patch(fields, in.LocalTimestamp)
	if len(fields) > 0 {
		e.Deleted = false
	}
	return e
}

func decide(res Resolution, target, remote *entity.Entity, fields []string) Decision {
	d := Decision{
		Resolution:     res,
		Entity:         target,
		ConflictFields: fields,
	}
	if remote == nil {
		d.Patch = copyFields(target.Fields)
		d.Delete = target.Deleted
		return d
	}
	if target.Deleted {
		d.Delete = !remote.Deleted
		return d
	}
	if remote.Deleted {
		d.Patch = copyFields(target.Fields)
		return d
	}
	diff := entity.DiffFields(target.Fields, remote.Fields)
	if len(diff) > 0 {
		d.Patch = make(map[string]any, len(diff))
		for _, name := range diff {
			d.Patch[name] = target.Fields[name]
		}
	}
	return d
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
