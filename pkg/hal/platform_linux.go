//go:build linux && !tinygo

package hal

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/compute-blade-community/pixelwire/pkg/log"
	"go.uber.org/zap"
)

const deviceTreeCompatiblePath = "/sys/firmware/devicetree/base/compatible"

// Platform is the SoC family, used to pick a hardware pulse peripheral.
type Platform string

const (
	PlatformBcm2712 Platform = "bcm2712"
	PlatformBcm2711 Platform = "bcm2711"
	PlatformRk3588  Platform = "rk3588"
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform reads the device tree compatible string.
func DetectPlatform(ctx context.Context) (Platform, error) {
	compatible, err := os.ReadFile(deviceTreeCompatiblePath)
	if err != nil {
		return PlatformUnknown, fmt.Errorf("failed to read device tree compatible string: %w", err)
	}

	return platformFromCompatible(ctx, string(compatible)), nil
}

func platformFromCompatible(ctx context.Context, compatStr string) Platform {
	log.FromContext(ctx).Info("detected platform", zap.String("compatible", strings.ReplaceAll(compatStr, "\x00", ", ")))

	switch {
	case strings.Contains(compatStr, "bcm2712"):
		return PlatformBcm2712
	case strings.Contains(compatStr, "bcm2711"):
		return PlatformBcm2711
	case strings.Contains(compatStr, "rockchip,rk3588"):
		return PlatformRk3588
	default:
		return PlatformUnknown
	}
}
