package inference

import (
	"sync"

	"github.com/rotisserie/eris"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitRuntime loads the onnxruntime shared library once per process. An
// empty path uses the platform default library name.
func InitRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortErr = ort.InitializeEnvironment()
		if ortErr == nil {
			zap.L().Info("onnxruntime initialized", zap.String("version", ort.GetVersion()))
		}
	})
	return eris.Wrap(ortErr, "inference: initialize onnxruntime")
}

// ShutdownRuntime releases the onnxruntime environment.
func ShutdownRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return eris.Wrap(ort.DestroyEnvironment(), "inference: destroy onnxruntime")
}

func int64Tensor(b batch, data []int64) (*ort.Tensor[int64], error) {
	t, err := ort.NewTensor(ort.NewShape(int64(b.rows), int64(b.cols)), data)
	if err != nil {
		return nil, eris.Wrap(err, "inference: create input tensor")
	}
	return t, nil
}

func destroyAll(vals ...ort.Value) {
	for _, v := range vals {
		if v != nil {
			_ = v.Destroy()
		}
	}
}
