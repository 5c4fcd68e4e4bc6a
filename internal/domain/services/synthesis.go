package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
)

// SynthesizedPackagePrefix heads every generated package name
const SynthesizedPackagePrefix = "com.apkforge.gen"

// SynthesizePackageName generates a fresh unique package name
func SynthesizePackageName() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s.p%s", SynthesizedPackagePrefix, id[:8])
}

// SynthesizeManifest builds a complete replacement manifest skeleton.
// It is the fallback for binary manifests (no decoder exists) and for
// text manifests that stay unparsable after sanitation. The overlay
// merge runs afterwards, so the skeleton only carries what merging
// cannot add: identity, versioning, SDK bounds and a launcher activity.
func SynthesizeManifest(mode entities.Mode, now time.Time) *entities.Element {
	root := &entities.Element{
		Name: "manifest",
		Attrs: []entities.Attr{
			{Key: "xmlns:android", Value: AndroidNamespace},
			{Key: "package", Value: SynthesizePackageName()},
			{Key: "android:versionCode", Value: fmt.Sprintf("%d", now.Unix())},
			{Key: "android:versionName", Value: "1.0-apkforge"},
		},
	}

	root.Children = append(root.Children, &entities.Element{
		Name: "uses-sdk",
		Attrs: []entities.Attr{
			{Key: "android:minSdkVersion", Value: "21"},
			{Key: "android:targetSdkVersion", Value: "28"},
		},
	})

	app := &entities.Element{
		Name: "application",
		Attrs: []entities.Attr{
			{Key: "android:name", Value: ApplicationClass(mode)},
			{Key: "android:label", Value: "apkforge"},
		},
	}
	app.Children = append(app.Children, &entities.Element{
		Name: "activity",
		Attrs: []entities.Attr{
			{Key: "android:name", Value: ".MainActivity"},
			{Key: "android:exported", Value: "true"},
		},
		Children: []entities.Node{
			&entities.Element{
				Name: "intent-filter",
				Children: []entities.Node{
					&entities.Element{
						Name:  "action",
						Attrs: []entities.Attr{{Key: "android:name", Value: "android.intent.action.MAIN"}},
					},
					&entities.Element{
						Name:  "category",
						Attrs: []entities.Attr{{Key: "android:name", Value: "android.intent.category.LAUNCHER"}},
					},
				},
			},
		},
	})
	root.Children = append(root.Children, app)

	return root
}
