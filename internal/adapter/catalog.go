package adapter

import "github.com/mark3labs/mcp-go/mcp"

// toolSpec pairs a tool definition with its routing. Local tools are
// answered by the broker itself and work before any channel is joined;
// everything else is forwarded to the plugin executor.
type toolSpec struct {
	tool  mcp.Tool
	local bool
}

// catalog returns the full tool set. It is fixed at build time; there is no
// discovery step against the plugin.
func catalog() []toolSpec {
	var specs []toolSpec
	specs = append(specs, channelTools()...)
	specs = append(specs, commentTools()...)
	specs = append(specs, configTools()...)
	specs = append(specs, inspectionTools()...)
	specs = append(specs, creationTools()...)
	specs = append(specs, stylingTools()...)
	specs = append(specs, geometryTools()...)
	specs = append(specs, layoutTools()...)
	specs = append(specs, textTools()...)
	specs = append(specs, componentTools()...)
	specs = append(specs, annotationTools()...)
	specs = append(specs, prototypeTools()...)
	return specs
}

func local(tool mcp.Tool) toolSpec   { return toolSpec{tool: tool, local: true} }
func forward(tool mcp.Tool) toolSpec { return toolSpec{tool: tool} }

func nodeID(desc string) mcp.ToolOption {
	return mcp.WithString("nodeId", mcp.Required(), mcp.Description(desc))
}

func channelTools() []toolSpec {
	return []toolSpec{
		local(mcp.NewTool("join_channel",
			mcp.WithDescription("Join a channel to talk to the Figma plugin. Must be called before any design tool."),
			mcp.WithString("channel", mcp.Required(), mcp.Description("Channel name shown in the plugin UI")),
		)),
		local(mcp.NewTool("get_active_channels",
			mcp.WithDescription("List channels currently open on the local bridge and who is in them."),
		)),
		local(mcp.NewTool("connection_diagnostics",
			mcp.WithDescription("Report bridge health: uptime, channels, resource usage, and whether a plugin executor is connected."),
		)),
		local(mcp.NewTool("send_notification",
			mcp.WithDescription("Show a desktop notification on the machine running the bridge."),
			mcp.WithString("message", mcp.Required(), mcp.Description("Notification body")),
			mcp.WithString("title", mcp.Description("Notification title")),
		)),
	}
}

func commentTools() []toolSpec {
	fileKey := mcp.WithString("fileKey", mcp.Description("Figma file key; defaults to the configured file"))
	return []toolSpec{
		local(mcp.NewTool("get_figma_comments",
			mcp.WithDescription("Fetch all comments on a Figma file via the REST API."),
			fileKey,
			mcp.WithBoolean("asMarkdown", mcp.Description("Return comment bodies as markdown")),
		)),
		local(mcp.NewTool("post_figma_comment",
			mcp.WithDescription("Post a new comment on a Figma file, optionally anchored to a node or canvas point."),
			fileKey,
			mcp.WithString("message", mcp.Required(), mcp.Description("Comment text")),
			mcp.WithString("nodeId", mcp.Description("Node to anchor the comment to")),
			mcp.WithNumber("x", mcp.Description("Canvas X when not anchored to a node")),
			mcp.WithNumber("y", mcp.Description("Canvas Y when not anchored to a node")),
		)),
		local(mcp.NewTool("reply_figma_comment",
			mcp.WithDescription("Reply to an existing comment thread on a Figma file."),
			fileKey,
			mcp.WithString("commentId", mcp.Required(), mcp.Description("Comment to reply to")),
			mcp.WithString("message", mcp.Required(), mcp.Description("Reply text")),
		)),
		local(mcp.NewTool("post_comment_reaction",
			mcp.WithDescription("Add an emoji reaction to a comment."),
			fileKey,
			mcp.WithString("commentId", mcp.Required(), mcp.Description("Comment to react to")),
			mcp.WithString("emoji", mcp.Required(), mcp.Description("Emoji shortcode, e.g. :heart:")),
		)),
		local(mcp.NewTool("get_comment_reactions",
			mcp.WithDescription("List reactions on a comment."),
			fileKey,
			mcp.WithString("commentId", mcp.Required(), mcp.Description("Comment to inspect")),
			mcp.WithString("cursor", mcp.Description("Pagination cursor from a previous page")),
		)),
		local(mcp.NewTool("delete_comment_reaction",
			mcp.WithDescription("Remove one of your emoji reactions from a comment."),
			fileKey,
			mcp.WithString("commentId", mcp.Required(), mcp.Description("Comment to edit")),
			mcp.WithString("emoji", mcp.Required(), mcp.Description("Emoji shortcode to remove")),
		)),
	}
}

func configTools() []toolSpec {
	return []toolSpec{
		local(mcp.NewTool("get_figma_config",
			mcp.WithDescription("Show the REST API configuration: default file key, API base, and whether credentials are present."),
		)),
		local(mcp.NewTool("set_figma_config",
			mcp.WithDescription("Set the default Figma file key used by comment tools when fileKey is omitted."),
			mcp.WithString("fileKey", mcp.Required(), mcp.Description("File key to use by default")),
		)),
	}
}

func inspectionTools() []toolSpec {
	return []toolSpec{
		forward(mcp.NewTool("get_document_info",
			mcp.WithDescription("Get information about the current Figma document."),
		)),
		forward(mcp.NewTool("get_selection",
			mcp.WithDescription("Get the current selection in Figma."),
		)),
		forward(mcp.NewTool("read_my_design",
			mcp.WithDescription("Get detailed node information about the current selection without parameters."),
		)),
		forward(mcp.NewTool("get_node_info",
			mcp.WithDescription("Get detailed information about a specific node."),
			nodeID("Node to inspect"),
		)),
		forward(mcp.NewTool("get_nodes_info",
			mcp.WithDescription("Get detailed information about multiple nodes at once."),
			mcp.WithArray("nodeIds", mcp.Required(), mcp.Description("Nodes to inspect"),
				mcp.Items(map[string]any{"type": "string"})),
		)),
		forward(mcp.NewTool("get_styles",
			mcp.WithDescription("Get all local styles defined in the document."),
		)),
		forward(mcp.NewTool("get_local_components",
			mcp.WithDescription("Get all local components defined in the document."),
		)),
		forward(mcp.NewTool("get_styled_text_segments",
			mcp.WithDescription("Split a text node into segments that share a styling property."),
			nodeID("Text node to analyse"),
			mcp.WithString("property", mcp.Required(),
				mcp.Description("Property to segment by: fillStyleId, fontName, fontSize, textCase, textDecoration, textStyleId, fills, letterSpacing, lineHeight")),
		)),
	}
}

func creationTools() []toolSpec {
	placement := []mcp.ToolOption{
		mcp.WithNumber("x", mcp.Required(), mcp.Description("X position")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Y position")),
		mcp.WithNumber("width", mcp.Required(), mcp.Description("Width in pixels")),
		mcp.WithNumber("height", mcp.Required(), mcp.Description("Height in pixels")),
		mcp.WithString("name", mcp.Description("Layer name")),
		mcp.WithString("parentId", mcp.Description("Parent node to append to")),
	}
	return []toolSpec{
		forward(mcp.NewTool("create_rectangle",
			append([]mcp.ToolOption{mcp.WithDescription("Create a rectangle node.")}, placement...)...,
		)),
		forward(mcp.NewTool("create_frame",
			append([]mcp.ToolOption{mcp.WithDescription("Create a frame node, the usual container for layouts.")}, placement...)...,
		)),
		forward(mcp.NewTool("create_text",
			mcp.WithDescription("Create a text node."),
			mcp.WithNumber("x", mcp.Required(), mcp.Description("X position")),
			mcp.WithNumber("y", mcp.Required(), mcp.Description("Y position")),
			mcp.WithString("text", mcp.Required(), mcp.Description("Text content")),
			mcp.WithNumber("fontSize", mcp.Description("Font size, default 14")),
			mcp.WithNumber("fontWeight", mcp.Description("Font weight, e.g. 400 or 700")),
			mcp.WithObject("fontColor", mcp.Description("RGBA color object with r, g, b, a in 0..1")),
			mcp.WithString("name", mcp.Description("Layer name")),
			mcp.WithString("parentId", mcp.Description("Parent node to append to")),
		)),
	}
}

func stylingTools() []toolSpec {
	channels := []mcp.ToolOption{
		mcp.WithNumber("r", mcp.Required(), mcp.Description("Red 0..1")),
		mcp.WithNumber("g", mcp.Required(), mcp.Description("Green 0..1")),
		mcp.WithNumber("b", mcp.Required(), mcp.Description("Blue 0..1")),
		mcp.WithNumber("a", mcp.Description("Alpha 0..1, default 1")),
	}
	return []toolSpec{
		forward(mcp.NewTool("set_fill_color",
			append([]mcp.ToolOption{
				mcp.WithDescription("Set the solid fill color of a node."),
				nodeID("Node to fill"),
			}, channels...)...,
		)),
		forward(mcp.NewTool("set_stroke_color",
			append([]mcp.ToolOption{
				mcp.WithDescription("Set the stroke color and weight of a node."),
				nodeID("Node to stroke"),
			}, append(channels, mcp.WithNumber("weight", mcp.Description("Stroke weight, default 1")))...)...,
		)),
		forward(mcp.NewTool("set_corner_radius",
			mcp.WithDescription("Set the corner radius of a node, optionally per corner."),
			nodeID("Node to round"),
			mcp.WithNumber("radius", mcp.Required(), mcp.Description("Radius in pixels")),
			mcp.WithArray("corners", mcp.Description("Four booleans: top-left, top-right, bottom-right, bottom-left"),
				mcp.Items(map[string]any{"type": "boolean"})),
		)),
		forward(mcp.NewTool("set_effects",
			mcp.WithDescription("Replace the effects of a node, e.g. drop shadows and blurs."),
			nodeID("Node to style"),
			mcp.WithArray("effects", mcp.Required(), mcp.Description("Effect objects in plugin API shape"),
				mcp.Items(map[string]any{"type": "object"})),
		)),
	}
}

func geometryTools() []toolSpec {
	return []toolSpec{
		forward(mcp.NewTool("move_node",
			mcp.WithDescription("Move a node to a new position."),
			nodeID("Node to move"),
			mcp.WithNumber("x", mcp.Required(), mcp.Description("New X position")),
			mcp.WithNumber("y", mcp.Required(), mcp.Description("New Y position")),
		)),
		forward(mcp.NewTool("resize_node",
			mcp.WithDescription("Resize a node."),
			nodeID("Node to resize"),
			mcp.WithNumber("width", mcp.Required(), mcp.Description("New width")),
			mcp.WithNumber("height", mcp.Required(), mcp.Description("New height")),
		)),
		forward(mcp.NewTool("delete_node",
			mcp.WithDescription("Delete a node."),
			nodeID("Node to delete"),
		)),
		forward(mcp.NewTool("delete_multiple_nodes",
			mcp.WithDescription("Delete several nodes in one call."),
			mcp.WithArray("nodeIds", mcp.Required(), mcp.Description("Nodes to delete"),
				mcp.Items(map[string]any{"type": "string"})),
		)),
		forward(mcp.NewTool("clone_node",
			mcp.WithDescription("Clone a node, optionally at a new position."),
			nodeID("Node to clone"),
			mcp.WithNumber("x", mcp.Description("X position for the clone")),
			mcp.WithNumber("y", mcp.Description("Y position for the clone")),
		)),
		forward(mcp.NewTool("export_node_as_image",
			mcp.WithDescription("Export a node as an image and return it base64-encoded."),
			nodeID("Node to export"),
			mcp.WithString("format", mcp.Description("PNG, JPG, SVG, or PDF; default PNG")),
			mcp.WithNumber("scale", mcp.Description("Export scale, default 1")),
		)),
	}
}

func layoutTools() []toolSpec {
	return []toolSpec{
		forward(mcp.NewTool("set_layout_mode",
			mcp.WithDescription("Set the auto-layout mode of a frame."),
			nodeID("Frame to configure"),
			mcp.WithString("layoutMode", mcp.Required(), mcp.Description("NONE, HORIZONTAL, or VERTICAL")),
			mcp.WithString("layoutWrap", mcp.Description("NO_WRAP or WRAP")),
		)),
		forward(mcp.NewTool("set_padding",
			mcp.WithDescription("Set padding on an auto-layout frame."),
			nodeID("Frame to pad"),
			mcp.WithNumber("paddingTop", mcp.Description("Top padding")),
			mcp.WithNumber("paddingRight", mcp.Description("Right padding")),
			mcp.WithNumber("paddingBottom", mcp.Description("Bottom padding")),
			mcp.WithNumber("paddingLeft", mcp.Description("Left padding")),
		)),
		forward(mcp.NewTool("set_axis_align",
			mcp.WithDescription("Set alignment on an auto-layout frame."),
			nodeID("Frame to align"),
			mcp.WithString("primaryAxisAlignItems", mcp.Description("MIN, MAX, CENTER, or SPACE_BETWEEN")),
			mcp.WithString("counterAxisAlignItems", mcp.Description("MIN, MAX, CENTER, or BASELINE")),
		)),
		forward(mcp.NewTool("set_layout_sizing",
			mcp.WithDescription("Set sizing behaviour on an auto-layout frame or child."),
			nodeID("Node to configure"),
			mcp.WithString("layoutSizingHorizontal", mcp.Description("FIXED, HUG, or FILL")),
			mcp.WithString("layoutSizingVertical", mcp.Description("FIXED, HUG, or FILL")),
		)),
		forward(mcp.NewTool("set_item_spacing",
			mcp.WithDescription("Set the gap between children of an auto-layout frame."),
			nodeID("Frame to configure"),
			mcp.WithNumber("itemSpacing", mcp.Description("Gap along the primary axis")),
			mcp.WithNumber("counterAxisSpacing", mcp.Description("Gap between wrapped rows or columns")),
		)),
	}
}

func textTools() []toolSpec {
	return []toolSpec{
		forward(mcp.NewTool("set_text_content",
			mcp.WithDescription("Replace the content of a single text node."),
			nodeID("Text node to edit"),
			mcp.WithString("text", mcp.Required(), mcp.Description("New text content")),
		)),
		forward(mcp.NewTool("scan_text_nodes",
			mcp.WithDescription("Scan a subtree for text nodes. Large designs are chunked and progress is streamed."),
			nodeID("Root node to scan"),
			mcp.WithBoolean("useChunking", mcp.Description("Process in chunks, default true")),
			mcp.WithNumber("chunkSize", mcp.Description("Nodes per chunk, default 10")),
		)),
		forward(mcp.NewTool("set_multiple_text_contents",
			mcp.WithDescription("Replace the content of several text nodes in one batch."),
			nodeID("Common ancestor of the edited nodes"),
			mcp.WithArray("text", mcp.Required(), mcp.Description("Objects with nodeId and text"),
				mcp.Items(map[string]any{"type": "object"})),
		)),
		forward(mcp.NewTool("scan_nodes_by_types",
			mcp.WithDescription("Scan a subtree for nodes of the given types."),
			nodeID("Root node to scan"),
			mcp.WithArray("types", mcp.Required(), mcp.Description("Node types, e.g. COMPONENT, FRAME, TEXT"),
				mcp.Items(map[string]any{"type": "string"})),
		)),
	}
}

func componentTools() []toolSpec {
	return []toolSpec{
		forward(mcp.NewTool("create_component_instance",
			mcp.WithDescription("Instantiate a component by key at a position."),
			mcp.WithString("componentKey", mcp.Required(), mcp.Description("Component key")),
			mcp.WithNumber("x", mcp.Required(), mcp.Description("X position")),
			mcp.WithNumber("y", mcp.Required(), mcp.Description("Y position")),
		)),
		forward(mcp.NewTool("get_instance_overrides",
			mcp.WithDescription("Extract override properties from a component instance, default the selected one."),
			mcp.WithString("nodeId", mcp.Description("Instance to read; defaults to the selection")),
		)),
		forward(mcp.NewTool("set_instance_overrides",
			mcp.WithDescription("Apply previously extracted overrides to target instances."),
			mcp.WithString("sourceInstanceId", mcp.Required(), mcp.Description("Instance the overrides were read from")),
			mcp.WithArray("targetNodeIds", mcp.Required(), mcp.Description("Instances to apply the overrides to"),
				mcp.Items(map[string]any{"type": "string"})),
		)),
	}
}

func annotationTools() []toolSpec {
	return []toolSpec{
		forward(mcp.NewTool("get_annotations",
			mcp.WithDescription("Read annotations for a node or the whole document."),
			mcp.WithString("nodeId", mcp.Description("Node to inspect; omit for the document")),
			mcp.WithBoolean("includeCategories", mcp.Description("Include the category list in the result")),
		)),
		forward(mcp.NewTool("set_annotation",
			mcp.WithDescription("Create or update an annotation on a node."),
			nodeID("Node to annotate"),
			mcp.WithString("labelMarkdown", mcp.Required(), mcp.Description("Annotation text in markdown")),
			mcp.WithString("categoryId", mcp.Description("Annotation category")),
			mcp.WithString("annotationId", mcp.Description("Existing annotation to update")),
			mcp.WithArray("properties", mcp.Description("Annotation property objects"),
				mcp.Items(map[string]any{"type": "object"})),
		)),
		forward(mcp.NewTool("set_multiple_annotations",
			mcp.WithDescription("Create or update several annotations in one batch."),
			nodeID("Common ancestor of the annotated nodes"),
			mcp.WithArray("annotations", mcp.Required(), mcp.Description("Objects with nodeId, labelMarkdown, and optional categoryId"),
				mcp.Items(map[string]any{"type": "object"})),
		)),
	}
}

func prototypeTools() []toolSpec {
	return []toolSpec{
		forward(mcp.NewTool("get_reactions",
			mcp.WithDescription("Read prototype reactions from nodes, for conversion into connector lines."),
			mcp.WithArray("nodeIds", mcp.Required(), mcp.Description("Nodes to read reactions from"),
				mcp.Items(map[string]any{"type": "string"})),
		)),
		forward(mcp.NewTool("set_default_connector",
			mcp.WithDescription("Set a copied FigJam connector as the template for create_connections."),
			mcp.WithString("connectorId", mcp.Description("Connector node to copy; omit to check the current default")),
		)),
		forward(mcp.NewTool("create_connections",
			mcp.WithDescription("Create connector lines between node pairs, e.g. to visualise prototype flows."),
			mcp.WithArray("connections", mcp.Required(), mcp.Description("Objects with startNodeId, endNodeId, and optional text"),
				mcp.Items(map[string]any{"type": "object"})),
		)),
	}
}
