package metadata

import "github.com/cockroachdb/errors"

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

func FaceCullModeFromString(s string) (FaceCullMode, error) {
	switch s {
	case "none":
		return FaceCullModeNone, nil
	case "front":
		return FaceCullModeFront, nil
	case "back":
		return FaceCullModeBack, nil
	case "front_and_back":
		return FaceCullModeFrontAndBack, nil
	}
	return 0, errors.Newf("string %s is not a valid FaceCullMode", s)
}
