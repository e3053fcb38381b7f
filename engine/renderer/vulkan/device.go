package vulkan

import (
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
)

const portabilitySubsetExtensionName = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	TransferQueueIndex int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	// Copied out of Properties.Limits so the shader system can size its buffers.
	MinUniformBufferOffsetAlignment uint64
	SupportsAnisotropy              bool
	// Set when at least one memory type is both device local and host visible.
	SupportsDeviceLocalHostVisible bool

	DepthFormat vk.Format
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	ComputeFamilyIndex  int32
	TransferFamilyIndex int32
}

// Complete reports whether every queue the renderer needs was found.
func (q VulkanPhysicalDeviceQueueFamilyInfo) Complete() bool {
	return q.GraphicsFamilyIndex >= 0 && q.PresentFamilyIndex >= 0 && q.TransferFamilyIndex >= 0
}

// selectQueueFamilies picks a graphics, present, compute and transfer family.
// Present prefers the graphics family and transfer prefers the family doing the
// least other work, which is most likely a dedicated transfer queue.
func selectQueueFamilies(families []vk.QueueFamilyProperties, presentSupport func(index uint32) bool) VulkanPhysicalDeviceQueueFamilyInfo {
	info := VulkanPhysicalDeviceQueueFamilyInfo{-1, -1, -1, -1}
	minTransferScore := 255
	for i, family := range families {
		if family.QueueCount == 0 {
			continue
		}
		flags := vk.QueueFlagBits(family.QueueFlags)
		currentTransferScore := 0

		if flags&vk.QueueGraphicsBit != 0 {
			if info.GraphicsFamilyIndex < 0 {
				info.GraphicsFamilyIndex = int32(i)
			}
			currentTransferScore++
		}
		if flags&vk.QueueComputeBit != 0 {
			if info.ComputeFamilyIndex < 0 {
				info.ComputeFamilyIndex = int32(i)
			}
			currentTransferScore++
		}
		if flags&vk.QueueTransferBit != 0 && currentTransferScore < minTransferScore {
			minTransferScore = currentTransferScore
			info.TransferFamilyIndex = int32(i)
		}
		if presentSupport(uint32(i)) {
			if info.PresentFamilyIndex < 0 || int32(i) == info.GraphicsFamilyIndex {
				info.PresentFamilyIndex = int32(i)
			}
		}
	}
	// Graphics queues always accept transfer work even when the bit is not reported.
	if info.TransferFamilyIndex < 0 {
		info.TransferFamilyIndex = info.GraphicsFamilyIndex
	}
	return info
}

// dedupeQueueIndices returns each family index once, keeping the first-seen order.
func dedupeQueueIndices(indices ...int32) []uint32 {
	out := make([]uint32, 0, len(indices))
	seen := make(map[int32]bool, len(indices))
	for _, index := range indices {
		if index < 0 || seen[index] {
			continue
		}
		seen[index] = true
		out = append(out, uint32(index))
	}
	return out
}

// missingExtensions returns the required names absent from available.
func missingExtensions(required, available []string) []string {
	have := make(map[string]bool, len(available))
	for _, name := range available {
		have[strings.TrimRight(name, "\x00")] = true
	}
	var missing []string
	for _, name := range required {
		name = strings.TrimRight(name, "\x00")
		if !have[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func deviceExtensionNames(device vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, vulkanError(res, "failed to enumerate device extensions")
	}
	properties := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, properties); res != vk.Success {
			return nil, vulkanError(res, "failed to enumerate device extensions")
		}
	}
	names := make([]string, 0, count)
	for i := range properties {
		properties[i].Deref()
		names = append(names, vk.ToString(properties[i].ExtensionName[:]))
	}
	return names, nil
}

func DeviceCreate(context *VulkanContext, requiredExtensions []string) error {
	context.Device = &VulkanDevice{
		GraphicsQueueIndex: -1,
		PresentQueueIndex:  -1,
		TransferQueueIndex: -1,
	}
	if err := selectPhysicalDevice(context, requiredExtensions); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := dedupeQueueIndices(
		context.Device.GraphicsQueueIndex,
		context.Device.PresentQueueIndex,
		context.Device.TransferQueueIndex,
	)
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if context.Device.SupportsAnisotropy {
		deviceFeatures.SamplerAnisotropy = vk.True
	}

	available, err := deviceExtensionNames(context.Device.PhysicalDevice)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	extensionNames := VulkanSafeStrings(requiredExtensions)
	if len(missingExtensions([]string{portabilitySubsetExtensionName}, available)) == 0 {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtensionName)
		extensionNames = append(extensionNames, VulkanSafeString(portabilitySubsetExtensionName))
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: extensionNames,
	}

	var logicalDevice vk.Device
	if res := vk.CreateDevice(context.Device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice); res != vk.Success {
		err := vulkanError(res, "failed to create logical device")
		core.LogError("%s", err)
		return err
	}
	context.Device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	// Get queues.
	var queue vk.Queue
	vk.GetDeviceQueue(logicalDevice, uint32(context.Device.GraphicsQueueIndex), 0, &queue)
	context.Device.GraphicsQueue = queue
	vk.GetDeviceQueue(logicalDevice, uint32(context.Device.PresentQueueIndex), 0, &queue)
	context.Device.PresentQueue = queue
	vk.GetDeviceQueue(logicalDevice, uint32(context.Device.TransferQueueIndex), 0, &queue)
	context.Device.TransferQueue = queue
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(logicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		err := vulkanError(res, "failed to create graphics command pool")
		core.LogError("%s", err)
		return err
	}
	context.Device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	return nil
}

func DeviceDestroy(context *VulkanContext) {
	if context.Device == nil {
		return
	}
	// Unset queues
	context.Device.GraphicsQueue = nil
	context.Device.PresentQueue = nil
	context.Device.TransferQueue = nil

	if context.Device.LogicalDevice != nil {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(context.Device.LogicalDevice, context.Device.GraphicsCommandPool, context.Allocator)

		// Destroy logical device
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	core.LogInfo("Releasing physical device resources...")
	context.Device.PhysicalDevice = nil
	context.Device.SwapchainSupport = VulkanSwapchainSupportInfo{}

	context.Device.GraphicsQueueIndex = -1
	context.Device.PresentQueueIndex = -1
	context.Device.TransferQueueIndex = -1
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	supportInfo := VulkanSwapchainSupportInfo{}

	// Surface capabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return supportInfo, vulkanError(res, "failed to get physical device surface capabilities")
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	// Surface formats
	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return supportInfo, vulkanError(res, "failed to get physical device surface formats")
	}
	if formatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats); res != vk.Success {
			return supportInfo, vulkanError(res, "failed to get physical device surface formats")
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	// Present modes
	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return supportInfo, vulkanError(res, "failed to get physical device surface present modes")
	}
	if presentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, presentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, supportInfo.PresentModes); res != vk.Success {
			return supportInfo, vulkanError(res, "failed to get physical device surface present modes")
		}
	}
	return supportInfo, nil
}

var depthFormatCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// pickDepthFormat returns the first candidate whose linear or optimal tiling
// features support depth-stencil attachments.
func pickDepthFormat(candidates []vk.Format, properties func(vk.Format) vk.FormatProperties) (vk.Format, error) {
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		props := properties(candidate)
		if props.LinearTilingFeatures&flags == flags || props.OptimalTilingFeatures&flags == flags {
			return candidate, nil
		}
	}
	return vk.FormatUndefined, core.ErrNoDepthFormat
}

func DeviceDetectDepthFormat(device *VulkanDevice) error {
	format, err := pickDepthFormat(depthFormatCandidates, func(f vk.Format) vk.FormatProperties {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, f, &properties)
		properties.Deref()
		return properties
	})
	device.DepthFormat = format
	return err
}

func selectPhysicalDevice(context *VulkanContext, requiredExtensions []string) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return vulkanError(res, "failed to enumerate physical devices")
	}
	if physicalDeviceCount == 0 {
		err := errors.Wrap(core.ErrNoSuitableDevice, "no devices which support Vulkan were found")
		core.LogError("%s", err)
		return err
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return vulkanError(res, "failed to enumerate physical devices")
	}

	for _, physicalDevice := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()
		properties.Limits.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(physicalDevice, &features)
		features.Deref()

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memory)
		memory.Deref()

		queueInfo, support, ok := physicalDeviceMeetsRequirements(physicalDevice, context.Surface, &properties, requiredExtensions)
		if !ok {
			continue
		}

		deviceName := vk.ToString(properties.DeviceName[:])
		core.LogInfo("Selected device: '%s'.", deviceName)
		// GPU type, etc.
		switch properties.DeviceType {
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		default:
			core.LogInfo("GPU type is Unknown.")
		}

		core.LogInfo(
			"GPU Driver version: %d.%d.%d",
			vk.Version(properties.DriverVersion).Major(),
			vk.Version(properties.DriverVersion).Minor(),
			vk.Version(properties.DriverVersion).Patch(),
		)
		// Vulkan API version.
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version(properties.ApiVersion).Major(),
			vk.Version(properties.ApiVersion).Minor(),
			vk.Version(properties.ApiVersion).Patch(),
		)

		// Memory information
		deviceLocalHostVisible := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit | vk.MemoryPropertyHostVisibleBit)
		for j := uint32(0); j < memory.MemoryHeapCount; j++ {
			memory.MemoryHeaps[j].Deref()
			memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
			if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
				core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
			} else {
				core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
			}
		}
		for j := uint32(0); j < memory.MemoryTypeCount; j++ {
			memory.MemoryTypes[j].Deref()
			if memory.MemoryTypes[j].PropertyFlags&deviceLocalHostVisible == deviceLocalHostVisible {
				context.Device.SupportsDeviceLocalHostVisible = true
			}
		}

		context.Device.PhysicalDevice = physicalDevice
		context.Device.GraphicsQueueIndex = queueInfo.GraphicsFamilyIndex
		context.Device.PresentQueueIndex = queueInfo.PresentFamilyIndex
		context.Device.TransferQueueIndex = queueInfo.TransferFamilyIndex
		context.Device.SwapchainSupport = support

		// Keep a copy of properties, features and memory info for later use.
		context.Device.Properties = properties
		context.Device.Features = features
		context.Device.Memory = memory
		context.Device.MinUniformBufferOffsetAlignment = uint64(properties.Limits.MinUniformBufferOffsetAlignment)
		context.Device.SupportsAnisotropy = features.SamplerAnisotropy == vk.True

		core.LogInfo("Physical device selected.")
		return nil
	}

	err := errors.Wrap(core.ErrNoSuitableDevice, "no physical devices were found which meet the requirements")
	core.LogError("%s", err)
	return err
}

func physicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, requiredExtensions []string) (VulkanPhysicalDeviceQueueFamilyInfo, VulkanSwapchainSupportInfo, bool) {
	deviceName := vk.ToString(properties.DeviceName[:])

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)
	for i := range queueFamilies {
		queueFamilies[i].Deref()
	}

	queueInfo := selectQueueFamilies(queueFamilies, func(index uint32) bool {
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, index, surface, &supportsPresent); res != vk.Success {
			return false
		}
		return supportsPresent == vk.True
	})

	core.LogInfo("Graphics | Present | Compute | Transfer | Name")
	core.LogInfo("      %2d |      %2d |      %2d |       %2d | %s",
		queueInfo.GraphicsFamilyIndex,
		queueInfo.PresentFamilyIndex,
		queueInfo.ComputeFamilyIndex,
		queueInfo.TransferFamilyIndex,
		deviceName)

	if !queueInfo.Complete() {
		core.LogInfo("Device '%s' does not meet queue requirements, skipping.", deviceName)
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}

	// Device extensions.
	available, err := deviceExtensionNames(device)
	if err != nil {
		core.LogWarn("%s", err)
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}
	if missing := missingExtensions(requiredExtensions, available); len(missing) > 0 {
		core.LogInfo("Required extensions not found: '%s', skipping device.", strings.Join(missing, ", "))
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}

	// Query swapchain support.
	support, err := DeviceQuerySwapchainSupport(device, surface)
	if err != nil {
		core.LogWarn("%s", err)
		return queueInfo, support, false
	}
	if len(support.Formats) < 1 || len(support.PresentModes) < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return queueInfo, support, false
	}

	core.LogInfo("Device meets queue requirements.")
	core.LogDebug("Graphics Family Index: %d", queueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", queueInfo.PresentFamilyIndex)
	core.LogDebug("Transfer Family Index: %d", queueInfo.TransferFamilyIndex)
	core.LogDebug("Compute Family Index:  %d", queueInfo.ComputeFamilyIndex)
	return queueInfo, support, true
}
