package adapter

import "github.com/mark3labs/mcp-go/mcp"

// promptSpec pairs a prompt definition with its fixed text. Prompts are
// strategy documents the client can pull into context before driving the
// design tools.
type promptSpec struct {
	prompt mcp.Prompt
	text   string
}

func prompts() []promptSpec {
	return []promptSpec{
		{
			prompt: mcp.NewPrompt("design_strategy",
				mcp.WithPromptDescription("Best practices for creating and editing designs in Figma")),
			text: designStrategyText,
		},
		{
			prompt: mcp.NewPrompt("read_design_strategy",
				mcp.WithPromptDescription("Best practices for reading and understanding Figma designs")),
			text: readDesignStrategyText,
		},
		{
			prompt: mcp.NewPrompt("text_replacement_strategy",
				mcp.WithPromptDescription("Systematic approach for replacing text across a design")),
			text: textReplacementStrategyText,
		},
		{
			prompt: mcp.NewPrompt("annotation_conversion_strategy",
				mcp.WithPromptDescription("Converting manual annotation markers into native Figma annotations")),
			text: annotationConversionStrategyText,
		},
		{
			prompt: mcp.NewPrompt("swap_overrides_instances",
				mcp.WithPromptDescription("Transferring component instance overrides from a source to targets")),
			text: swapOverridesText,
		},
		{
			prompt: mcp.NewPrompt("reaction_to_connector_strategy",
				mcp.WithPromptDescription("Turning prototype reactions into visible connector lines")),
			text: reactionToConnectorStrategyText,
		},
	}
}

const designStrategyText = `When creating or editing designs in Figma, follow these steps:

1. Join a channel first with join_channel using the name shown in the plugin UI. Every design tool fails with not_joined until you do.

2. Understand before you touch. Call get_document_info for document context and get_selection to see what the user is pointing at. If the user refers to "this frame" or "the selected button", the selection is your anchor.

3. Build containers before content. Create a frame with create_frame, then append children by passing its id as parentId to create_rectangle, create_text, and friends. Top-level orphan nodes make messy documents.

4. Prefer auto-layout over absolute positioning. After creating a frame, call set_layout_mode with HORIZONTAL or VERTICAL, then set_padding, set_item_spacing, and set_axis_align. Children then flow instead of overlapping, and set_layout_sizing lets them hug or fill.

5. Style deliberately. Colors are 0..1 floats, not 0..255: set_fill_color with r 1, g 0, b 0 is pure red. Use set_stroke_color for borders, set_corner_radius for rounding, and set_effects for shadows.

6. Verify after mutating. Creation and styling tools return the affected node; re-read with get_node_info when a sequence of edits must stay consistent. If a call times out, the plugin may still have applied it, so check before retrying.

7. Batch where batch tools exist. delete_multiple_nodes beats a loop of delete_node, and set_multiple_text_contents beats repeated set_text_content.

Keep names meaningful: pass name on creation tools so the layer list reads like a design, not like "Rectangle 47".`

const readDesignStrategyText = `To read and understand a Figma design:

1. Join the channel shown in the plugin, then orient yourself with get_document_info: it tells you the current page and its top-level frames.

2. For "what am I looking at" questions, call read_my_design. It returns the full detail of the current selection, including children, so a single call usually answers questions about the selected component.

3. Walk structure deliberately. get_node_info on a frame returns its children ids; fetch several at once with get_nodes_info instead of looping. Deep trees are large, so start shallow and descend only into branches the user cares about.

4. Text content lives in TEXT nodes. scan_text_nodes on a root frame returns every text node underneath with content and position, chunked with progress updates on large designs. Use it before summarising copy or auditing wording.

5. Styling questions have dedicated readers: get_styles lists local color, text, and effect styles; get_styled_text_segments splits one text node by a property such as fontSize or fills when you need to know which words are bold.

6. Components: get_local_components lists definitions; on an instance, get_instance_overrides shows what was changed from the master.

Never guess node ids. Every id you use must come from a previous read or from the selection.`

const textReplacementStrategyText = `To replace text across a design safely:

1. Scan first. Call scan_text_nodes on the root frame with useChunking true. Keep the returned list: node ids, current content, and position. On large designs progress arrives incrementally; wait for the final result before editing.

2. Plan the mapping. Build the full list of nodeId to new text before any mutation. Match on the scanned content, not on layer names, which are often stale. Respect structure: a "Submit" inside a button and a "Submit" in a heading may need different translations.

3. Apply in batches. Use set_multiple_text_contents with the common ancestor as nodeId and the text array as the mapping. Batches of about ten keep each call well under the timeout; the tool reports per-node success and failure.

4. Handle failures individually. Nodes that failed in a batch can be retried one at a time with set_text_content. Typical causes are missing fonts and locked layers; report what could not be changed instead of silently skipping it.

5. Verify. Re-run scan_text_nodes and diff against the plan. Layout may shift when text grows; if the user asked for fidelity, check affected frames with get_node_info.

Text in component instances often cannot be edited directly. If a node refuses the edit, check whether it lives inside an instance and edit the main component instead, or use instance overrides.`

const annotationConversionStrategyText = `Designs often carry manual annotation markers: numbered badges next to elements with a legend frame explaining each number. To convert these into native Figma annotations:

1. Inventory the markers. scan_nodes_by_types with types INSTANCE, FRAME, and ELLIPSE over the annotated area finds badge candidates; scan_text_nodes finds the numbers inside them and the legend entries. Pair badge numbers with legend text by matching the digits.

2. Find the annotated targets. A marker usually sits next to or on top of the element it describes. Use the scanned positions to find the nearest meaningful node, preferring named frames and components over raw shapes.

3. Check available categories with get_annotations and includeCategories true, and map each legend entry to a category id where one fits.

4. Create native annotations in batches with set_multiple_annotations: each entry carries the target nodeId and the legend text as labelMarkdown. For a single one-off use set_annotation.

5. Only after verifying with get_annotations that every native annotation exists, delete the manual markers and the legend with delete_multiple_nodes, and confirm with the user first.

The order matters: create replacements, verify, then remove originals.`

const swapOverridesText = `To copy the customisations of one component instance onto others:

1. Identify the source. With the source instance selected, call get_instance_overrides without arguments, or pass its nodeId explicitly. The result includes the source instance id and the number of overrides extracted: text edits, swapped nested components, and visibility changes.

2. Identify the targets. Targets must be component instances as well. Collect their ids from the selection or from get_node_info on their parent. Applying overrides to a plain frame fails.

3. Apply with set_instance_overrides, passing sourceInstanceId and the full targetNodeIds list in one call. The plugin transfers the saved overrides to every target and reports how many properties were applied per target.

4. Verify visually relevant targets with get_node_info. Overrides referencing components that do not exist in the target's tree are skipped, so the result can be partial.

This is the right tool when a user says "make these cards look like that one". It does not re-parent or resize targets; it only transfers override properties.`

const reactionToConnectorStrategyText = `Prototype reactions are invisible on the canvas. To turn them into visible connector lines, in strict order:

1. Check the connector template with set_default_connector and no arguments. If none is set, the user must copy a connector from FigJam onto the page once; then call set_default_connector with its connectorId. Without a template, create_connections cannot draw.

2. Read the flows with get_reactions over the frames of interest. Each reaction yields a start node, a destination node id, and a trigger such as ON_CLICK. The plugin highlights the nodes it read so the user can follow along.

3. Filter to navigation. Only reactions that navigate or open an overlay become arrows; ignore state changes like hover swaps unless the user asks.

4. Draw with create_connections, passing startNodeId, endNodeId, and a short text label per connection, e.g. the trigger name. Labels keep multi-step flows readable.

5. Report the count of connectors created and any reactions skipped, and leave the prototype untouched: reading reactions never modifies them.`
