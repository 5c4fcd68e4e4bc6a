// Package services implements the pure domain logic of the pipeline:
// overlay merge transforms and manifest tree manipulation. Nothing in
// this package touches the filesystem or mutates its inputs.
package services

import (
	"github.com/halcyonlabs/apkforge/internal/domain/entities"
)

// MergeOverlay returns a new manifest tree with the overlay applied.
//
// uses-permission entries are inserted only when no existing entry
// carries the same android:name, so merging is idempotent under
// repetition. Injected services, receivers and providers follow the
// same insert-if-absent rule inside the application element. The fixed
// application attribute set is overwritten unconditionally.
func MergeOverlay(root *entities.Element, set entities.OverlaySet, mode entities.Mode) *entities.Element {
	out := root.Clone()

	mergePermissions(out, set.Permissions)

	app := out.Child("application")
	if app == nil {
		app = &entities.Element{Name: "application"}
		out.Children = append(out.Children, app)
	}
	for _, a := range applicationAttributes(mode) {
		app.SetAttr(a.Key, a.Value)
	}
	mergeComponents(app, "service", set.Services)
	mergeComponents(app, "receiver", set.Receivers)
	mergeComponents(app, "provider", set.Providers)

	return out
}

func mergePermissions(root *entities.Element, permissions []string) {
	present := make(map[string]bool)
	for _, el := range root.ChildrenNamed("uses-permission") {
		if name, ok := el.Attr("android:name"); ok {
			present[name] = true
		}
	}

	// Insert new permissions before the application element so the
	// serialized manifest keeps the conventional declaration order.
	var inserted []entities.Node
	for _, p := range permissions {
		if present[p] {
			continue
		}
		present[p] = true
		inserted = append(inserted, &entities.Element{
			Name:  "uses-permission",
			Attrs: []entities.Attr{{Key: "android:name", Value: p}},
		})
	}
	if len(inserted) == 0 {
		return
	}

	appIdx := -1
	for i, n := range root.Children {
		if el, ok := n.(*entities.Element); ok && el.Name == "application" {
			appIdx = i
			break
		}
	}
	if appIdx < 0 {
		root.Children = append(root.Children, inserted...)
		return
	}
	children := make([]entities.Node, 0, len(root.Children)+len(inserted))
	children = append(children, root.Children[:appIdx]...)
	children = append(children, inserted...)
	children = append(children, root.Children[appIdx:]...)
	root.Children = children
}

func mergeComponents(app *entities.Element, kind string, components []entities.Component) {
	present := make(map[string]bool)
	for _, el := range app.ChildrenNamed(kind) {
		if name, ok := el.Attr("android:name"); ok {
			present[name] = true
		}
	}
	for _, c := range components {
		if present[c.Name] {
			continue
		}
		present[c.Name] = true
		el := &entities.Element{
			Name: kind,
			Attrs: []entities.Attr{
				{Key: "android:name", Value: c.Name},
				{Key: "android:exported", Value: boolAttr(c.Exported)},
			},
		}
		for _, a := range c.Attrs {
			el.SetAttr(a.Key, a.Value)
		}
		// FileProvider components need their meta-data path declaration
		if kind == "provider" {
			el.Children = append(el.Children, &entities.Element{
				Name: "meta-data",
				Attrs: []entities.Attr{
					{Key: "android:name", Value: "android.support.FILE_PROVIDER_PATHS"},
					{Key: "android:resource", Value: "@xml/file_paths"},
				},
			})
		}
		app.Children = append(app.Children, el)
	}
}

func boolAttr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// PermissionCount returns the number of uses-permission declarations
func PermissionCount(root *entities.Element) int {
	return len(root.ChildrenNamed("uses-permission"))
}
